package costing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingBOM is returned when a product without a bill of materials is costed.
var ErrMissingBOM = errors.New("product has no bill of materials")

// ErrDegenerateInput is returned when an input would make a cost formula divide
// by zero. Callers that render results should treat it as "cost unavailable",
// which is not the same as a cost of zero.
var ErrDegenerateInput = errors.New("degenerate input")

var (
	hundred        = decimal.NewFromInt(100)
	minutesPerHour = decimal.NewFromInt(60)
)

// Supplier is a weak back reference carried by a raw material. Materials do not
// own their suppliers; only the fields costing and purchasing need are kept.
type Supplier struct {
	ID           string
	Name         string
	LeadTimeDays int
}

// RawMaterial represents a purchasable input. Stock, costs and percentages are
// expected to be non-negative; percentages are whole numbers (10 means 10%).
type RawMaterial struct {
	ID           string
	Code         string
	Name         string
	Unit         string
	UnitCost     decimal.Decimal
	CurrentStock decimal.Decimal
	MinimumStock decimal.Decimal
	WastePercent decimal.Decimal
	Suppliers    []Supplier
}

// ProductionStep is one stage of manufacturing a product.
//
// AverageLossPercent is informational: it is recorded per step but does not
// feed the cost formula, which only applies the product-level loss percentage.
type ProductionStep struct {
	Name               string
	TimeMinutes        decimal.Decimal
	LaborCostPerHour   decimal.Decimal
	IndirectCosts      decimal.Decimal
	AverageLossPercent decimal.Decimal
}

// BOMItem ties a quantity of a raw material into a bill of materials. Material
// is a shared reference resolved by the caller at read time; the item does not
// own it. A nil Material degrades to zero waste and zero unit cost.
type BOMItem struct {
	RawMaterialID string
	Quantity      decimal.Decimal
	Unit          string
	Material      *RawMaterial
}

// WasteAdjustedQuantity returns the nominal quantity inflated by the referenced
// material's expected process waste.
func (it BOMItem) WasteAdjustedQuantity() decimal.Decimal {
	if it.Material == nil {
		return it.Quantity
	}
	return it.Quantity.Mul(percentFactor(it.Material.WastePercent))
}

// BillOfMaterials owns the ordered items and production steps needed to build
// one unit of a product.
type BillOfMaterials struct {
	Items []BOMItem
	Steps []ProductionStep
}

// TotalProductionTime returns the sum of step times in minutes.
func (b BillOfMaterials) TotalProductionTime() decimal.Decimal {
	total := decimal.Zero
	for _, step := range b.Steps {
		total = total.Add(step.TimeMinutes)
	}
	return total
}

// Product is a sellable good. A nil BOM means its cost cannot be calculated.
type Product struct {
	ID                    string
	Name                  string
	SalePrice             decimal.Decimal
	AllocatedFixedCost    decimal.Decimal
	ProductionTimeMinutes decimal.Decimal
	AverageLossPercent    decimal.Decimal
	BOM                   *BillOfMaterials
}

// Calculation is a fresh unit-economics snapshot. It is never mutated after
// creation; the caller decides whether to persist or discard it.
type Calculation struct {
	RawMaterialsCost    decimal.Decimal `json:"raw_materials_cost"`
	LaborCost           decimal.Decimal `json:"labor_cost"`
	IndirectCosts       decimal.Decimal `json:"indirect_costs"`
	LossCost            decimal.Decimal `json:"loss_cost"`
	TotalProductionCost decimal.Decimal `json:"total_production_cost"`
	FixedCostAllocation decimal.Decimal `json:"fixed_cost_allocation"`
	TotalUnitCost       decimal.Decimal `json:"total_unit_cost"`
	ProfitMargin        decimal.Decimal `json:"profit_margin"`
	ProfitMarginPercent decimal.Decimal `json:"profit_margin_percent"`
	ContributionMargin  decimal.Decimal `json:"contribution_margin"`
	BreakEvenPoint      decimal.Decimal `json:"break_even_point"`
	CalculatedAt        time.Time       `json:"calculated_at"`
}

// RawMaterialsCost accumulates waste-adjusted quantity times unit cost across
// all BOM items. An empty item list yields zero.
func RawMaterialsCost(bom BillOfMaterials) decimal.Decimal {
	total := decimal.Zero
	for _, item := range bom.Items {
		if item.Material == nil {
			continue
		}
		total = total.Add(item.WasteAdjustedQuantity().Mul(item.Material.UnitCost))
	}
	return total
}

// LaborCost sums (timeMinutes / 60) × laborCostPerHour across production steps.
func LaborCost(bom BillOfMaterials) decimal.Decimal {
	total := decimal.Zero
	for _, step := range bom.Steps {
		total = total.Add(step.TimeMinutes.Div(minutesPerHour).Mul(step.LaborCostPerHour))
	}
	return total
}

// IndirectCosts sums the flat indirect allocation of every production step.
func IndirectCosts(bom BillOfMaterials) decimal.Decimal {
	total := decimal.Zero
	for _, step := range bom.Steps {
		total = total.Add(step.IndirectCosts)
	}
	return total
}

// LossCost applies the product-level loss percentage over the three direct
// cost components.
func LossCost(rawMaterials, labor, indirect, lossPercent decimal.Decimal) decimal.Decimal {
	return rawMaterials.Add(labor).Add(indirect).Mul(lossPercent.Div(hundred))
}

// BreakEvenPoint returns the unit volume at which revenue covers fixed plus
// variable cost. A non-positive contribution margin returns zero, signalling
// "never breaks even"; callers must not read that zero as "already there".
func BreakEvenPoint(fixedCosts, salePrice, variableCostPerUnit decimal.Decimal) decimal.Decimal {
	contribution := salePrice.Sub(variableCostPerUnit)
	if contribution.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return fixedCosts.Div(contribution)
}

// Calculate derives the full unit-economics snapshot for a product.
//
// It fails with ErrMissingBOM when the product has no bill of materials and
// with ErrDegenerateInput when the sale price is zero (the margin percentage
// divides by it). It never returns a partially populated result.
func Calculate(p Product) (Calculation, error) {
	if p.BOM == nil {
		return Calculation{}, ErrMissingBOM
	}
	if p.SalePrice.IsZero() {
		return Calculation{}, fmt.Errorf("%w: sale price is zero", ErrDegenerateInput)
	}

	rawMaterials := RawMaterialsCost(*p.BOM)
	labor := LaborCost(*p.BOM)
	indirect := IndirectCosts(*p.BOM)
	loss := LossCost(rawMaterials, labor, indirect, p.AverageLossPercent)

	production := rawMaterials.Add(labor).Add(indirect).Add(loss)
	unitCost := production.Add(p.AllocatedFixedCost)
	margin := p.SalePrice.Sub(unitCost)

	return Calculation{
		RawMaterialsCost:    rawMaterials,
		LaborCost:           labor,
		IndirectCosts:       indirect,
		LossCost:            loss,
		TotalProductionCost: production,
		FixedCostAllocation: p.AllocatedFixedCost,
		TotalUnitCost:       unitCost,
		ProfitMargin:        margin,
		ProfitMarginPercent: margin.Div(p.SalePrice).Mul(hundred),
		ContributionMargin:  p.SalePrice.Sub(production),
		BreakEvenPoint:      BreakEvenPoint(p.AllocatedFixedCost, p.SalePrice, production),
		CalculatedAt:        time.Now(),
	}, nil
}

func percentFactor(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(percent.Div(hundred))
}
