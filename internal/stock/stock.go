// Package stock decides whether current raw-material stock covers a requested
// production quantity and derives supporting inventory figures. All functions
// are total over well-formed input: a BOM item whose material is missing from
// the supplied collection is reported as insufficient, never as an error.
package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
)

// OrderStatus is the lifecycle state of a production order. Transitions are
// driven by the calling workflow; this package only reads quantity.
type OrderStatus string

const (
	StatusPlanned    OrderStatus = "PLANNED"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// DefaultProjectionDays is the horizon used by PurchaseSuggestion when the
// caller does not supply one.
const DefaultProjectionDays = 30

var safetyFactor = decimal.RequireFromString("1.2")

// ProductionOrder is a request to manufacture a quantity of one product.
type ProductionOrder struct {
	ID            string
	ProductID     string
	Quantity      decimal.Decimal
	Status        OrderStatus
	PlannedDate   time.Time
	CompletedDate *time.Time
	ActualCost    *decimal.Decimal
}

// Deduction is one pending stock decrement. Plan returns these so the
// persistence layer can apply the whole batch inside a single transaction.
type Deduction struct {
	RawMaterialID string
	Quantity      decimal.Decimal
}

// Result reports the outcome of processing a production order. Insufficiency
// is a normal business outcome, not an error.
type Result struct {
	Success      bool
	Insufficient []string
}

// Consumption returns the waste-adjusted required quantity per raw material id
// for producing the given quantity. A material referenced by more than one BOM
// item accumulates the sum of its items' requirements.
func Consumption(bom costing.BillOfMaterials, quantity decimal.Decimal) map[string]decimal.Decimal {
	required := make(map[string]decimal.Decimal, len(bom.Items))
	for _, item := range bom.Items {
		required[item.RawMaterialID] = required[item.RawMaterialID].
			Add(item.WasteAdjustedQuantity().Mul(quantity))
	}
	return required
}

// Plan checks the consumption of a production quantity against the supplied
// materials without mutating anything. When every material covers its
// requirement it returns the full deduction list, in BOM order, and a nil
// insufficiency list; otherwise the deduction list is nil and the
// insufficiency list names every short material (by name, falling back to id
// when the material is not in the collection). Equal stock and requirement is
// sufficient.
func Plan(bom costing.BillOfMaterials, quantity decimal.Decimal, materials []costing.RawMaterial) ([]Deduction, []string) {
	required := Consumption(bom, quantity)

	byID := make(map[string]costing.RawMaterial, len(materials))
	for _, material := range materials {
		byID[material.ID] = material
	}

	var deductions []Deduction
	var insufficient []string
	for _, id := range materialOrder(bom) {
		need := required[id]
		material, ok := byID[id]
		if !ok {
			insufficient = append(insufficient, id)
			continue
		}
		if material.CurrentStock.LessThan(need) {
			insufficient = append(insufficient, material.Name)
			continue
		}
		deductions = append(deductions, Deduction{RawMaterialID: id, Quantity: need})
	}

	if len(insufficient) > 0 {
		return nil, insufficient
	}
	return deductions, nil
}

// ProcessOrder validates an order's consumption against the supplied materials
// and, only when every material is sufficient, deducts the consumed quantities
// from the collection in one batch. On insufficiency no stock is touched.
func ProcessOrder(order ProductionOrder, bom costing.BillOfMaterials, materials []costing.RawMaterial) Result {
	deductions, insufficient := Plan(bom, order.Quantity, materials)
	if len(insufficient) > 0 {
		return Result{Success: false, Insufficient: insufficient}
	}

	index := make(map[string]int, len(materials))
	for i, material := range materials {
		index[material.ID] = i
	}
	for _, deduction := range deductions {
		i := index[deduction.RawMaterialID]
		materials[i].CurrentStock = materials[i].CurrentStock.Sub(deduction.Quantity)
	}

	return Result{Success: true}
}

// RuptureDays predicts in how many whole days the material's stock runs out at
// the given daily consumption rate. A non-positive rate returns bounded=false,
// meaning no rupture is predicted.
func RuptureDays(material costing.RawMaterial, dailyConsumption decimal.Decimal) (days int64, bounded bool) {
	if dailyConsumption.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	return material.CurrentStock.Div(dailyConsumption).Floor().IntPart(), true
}

// PurchaseSuggestion projects the material's stock daysToProject days ahead at
// the given consumption rate and, when the projection falls under the safety
// stock (minimum stock plus a 20% buffer), suggests buying the shortfall plus
// the consumption expected during the first supplier's lead time. The
// suggestion is never negative; a material with no suppliers gets no lead-time
// term.
func PurchaseSuggestion(material costing.RawMaterial, dailyConsumption decimal.Decimal, daysToProject int) decimal.Decimal {
	if daysToProject <= 0 {
		daysToProject = DefaultProjectionDays
	}

	projected := material.CurrentStock.
		Sub(dailyConsumption.Mul(decimal.NewFromInt(int64(daysToProject))))
	safetyStock := material.MinimumStock.Mul(safetyFactor)
	if projected.GreaterThanOrEqual(safetyStock) {
		return decimal.Zero
	}

	suggested := safetyStock.Sub(projected)
	if len(material.Suppliers) > 0 {
		leadTime := decimal.NewFromInt(int64(material.Suppliers[0].LeadTimeDays))
		suggested = suggested.Add(dailyConsumption.Mul(leadTime))
	}
	if suggested.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return suggested
}

// CriticalItems returns the materials whose current stock has fallen to or
// under their minimum stock.
func CriticalItems(materials []costing.RawMaterial) []costing.RawMaterial {
	critical := make([]costing.RawMaterial, 0)
	for _, material := range materials {
		if material.CurrentStock.LessThanOrEqual(material.MinimumStock) {
			critical = append(critical, material)
		}
	}
	return critical
}

// InventoryValue returns the sum of current stock times unit cost over all
// materials.
func InventoryValue(materials []costing.RawMaterial) decimal.Decimal {
	total := decimal.Zero
	for _, material := range materials {
		total = total.Add(material.CurrentStock.Mul(material.UnitCost))
	}
	return total
}

// materialOrder lists the distinct raw material ids of a BOM in first
// appearance order, keeping Plan's output deterministic.
func materialOrder(bom costing.BillOfMaterials) []string {
	seen := make(map[string]bool, len(bom.Items))
	order := make([]string, 0, len(bom.Items))
	for _, item := range bom.Items {
		if seen[item.RawMaterialID] {
			continue
		}
		seen[item.RawMaterialID] = true
		order = append(order, item.RawMaterialID)
	}
	return order
}
