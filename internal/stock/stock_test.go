package stock

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("invalid decimal literal %q: %v", value, err)
	}
	return d
}

func equalDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(t, want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func testMaterials(t *testing.T) []costing.RawMaterial {
	t.Helper()
	return []costing.RawMaterial{
		{
			ID:           "mat-flour",
			Name:         "Harina de trigo",
			Unit:         "kg",
			UnitCost:     dec(t, "2.80"),
			CurrentStock: dec(t, "120"),
			MinimumStock: dec(t, "40"),
			WastePercent: dec(t, "5"),
		},
		{
			ID:           "mat-sugar",
			Name:         "Azúcar refinada",
			Unit:         "kg",
			UnitCost:     dec(t, "3.20"),
			CurrentStock: dec(t, "80"),
			MinimumStock: dec(t, "25"),
			WastePercent: dec(t, "0"),
		},
	}
}

func testBOM(materials []costing.RawMaterial) costing.BillOfMaterials {
	items := make([]costing.BOMItem, 0, len(materials))
	for i := range materials {
		items = append(items, costing.BOMItem{
			RawMaterialID: materials[i].ID,
			Quantity:      decimal.NewFromInt(1),
			Unit:          materials[i].Unit,
			Material:      &materials[i],
		})
	}
	return costing.BillOfMaterials{Items: items}
}

func TestConsumption_AppliesWasteAndQuantity(t *testing.T) {
	materials := testMaterials(t)
	bom := testBOM(materials)

	required := Consumption(bom, dec(t, "10"))

	if len(required) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(required))
	}
	// 1 × 1.05 × 10
	equalDecimal(t, "flour requirement", required["mat-flour"], "10.5")
	equalDecimal(t, "sugar requirement", required["mat-sugar"], "10")
}

func TestConsumption_SumsDuplicateMaterials(t *testing.T) {
	materials := testMaterials(t)
	bom := testBOM(materials)
	bom.Items = append(bom.Items, costing.BOMItem{
		RawMaterialID: "mat-flour",
		Quantity:      dec(t, "0.5"),
		Unit:          "kg",
		Material:      &materials[0],
	})

	required := Consumption(bom, dec(t, "10"))

	// (1 + 0.5) × 1.05 × 10
	equalDecimal(t, "flour requirement", required["mat-flour"], "15.75")
}

func TestPlan_ExactStockIsSufficient(t *testing.T) {
	materials := testMaterials(t)
	materials[1].CurrentStock = dec(t, "10")
	bom := testBOM(materials)

	deductions, insufficient := Plan(bom, dec(t, "10"), materials)

	if insufficient != nil {
		t.Fatalf("expected no insufficiency, got %v", insufficient)
	}
	if len(deductions) != 2 {
		t.Fatalf("expected 2 deductions, got %d", len(deductions))
	}
	equalDecimal(t, "sugar deduction", deductions[1].Quantity, "10")
}

func TestPlan_MissingMaterialReportedByID(t *testing.T) {
	materials := testMaterials(t)
	bom := testBOM(materials)
	bom.Items = append(bom.Items, costing.BOMItem{
		RawMaterialID: "mat-ghost",
		Quantity:      decimal.NewFromInt(1),
	})

	deductions, insufficient := Plan(bom, dec(t, "1"), materials)

	if deductions != nil {
		t.Fatalf("expected nil deduction list, got %v", deductions)
	}
	if len(insufficient) != 1 || insufficient[0] != "mat-ghost" {
		t.Fatalf("expected [mat-ghost], got %v", insufficient)
	}
}

func TestProcessOrder_DeductsOnFullSuccess(t *testing.T) {
	materials := testMaterials(t)
	bom := testBOM(materials)
	order := ProductionOrder{ID: "op-1", ProductID: "prod-1", Quantity: dec(t, "10"), Status: StatusPlanned}

	result := ProcessOrder(order, bom, materials)

	if !result.Success {
		t.Fatalf("expected success, got insufficiency: %v", result.Insufficient)
	}
	equalDecimal(t, "flour stock", materials[0].CurrentStock, "109.5")
	equalDecimal(t, "sugar stock", materials[1].CurrentStock, "70")
}

func TestProcessOrder_NoPartialDeduction(t *testing.T) {
	materials := testMaterials(t)
	materials[1].CurrentStock = dec(t, "5")
	bom := testBOM(materials)
	order := ProductionOrder{Quantity: dec(t, "10")}

	result := ProcessOrder(order, bom, materials)

	if result.Success {
		t.Fatalf("expected failure")
	}
	if len(result.Insufficient) != 1 || result.Insufficient[0] != "Azúcar refinada" {
		t.Fatalf("expected insufficiency for sugar by name, got %v", result.Insufficient)
	}
	// The sufficient material must keep its stock untouched.
	equalDecimal(t, "flour stock", materials[0].CurrentStock, "120")
	equalDecimal(t, "sugar stock", materials[1].CurrentStock, "5")
}

func TestRuptureDays(t *testing.T) {
	materials := testMaterials(t)

	days, bounded := RuptureDays(materials[0], dec(t, "7"))
	if !bounded {
		t.Fatalf("expected bounded prediction")
	}
	// floor(120 / 7)
	if days != 17 {
		t.Fatalf("days = %d, want 17", days)
	}

	if _, bounded := RuptureDays(materials[0], decimal.Zero); bounded {
		t.Fatalf("expected unbounded prediction for zero rate")
	}
	if _, bounded := RuptureDays(materials[0], dec(t, "-1")); bounded {
		t.Fatalf("expected unbounded prediction for negative rate")
	}
}

func TestPurchaseSuggestion_BelowSafetyStock(t *testing.T) {
	materials := testMaterials(t)

	// projected = 120 − 3×30 = 30; safety = 40 × 1.2 = 48; shortfall = 18.
	got := PurchaseSuggestion(materials[0], dec(t, "3"), 0)

	equalDecimal(t, "suggestion without suppliers", got, "18")

	materials[0].Suppliers = []costing.Supplier{{ID: "sup-1", Name: "Distribuidora Andina", LeadTimeDays: 7}}
	withLead := PurchaseSuggestion(materials[0], dec(t, "3"), 0)

	// 18 + 3 × 7
	equalDecimal(t, "suggestion with lead time", withLead, "39")
}

func TestPurchaseSuggestion_AboveSafetyStockIsZero(t *testing.T) {
	materials := testMaterials(t)

	got := PurchaseSuggestion(materials[0], dec(t, "1"), 10)

	equalDecimal(t, "suggestion", got, "0")
}

func TestPurchaseSuggestion_NeverNegative(t *testing.T) {
	materials := testMaterials(t)
	materials[0].MinimumStock = decimal.Zero
	materials[0].CurrentStock = dec(t, "-10")

	rates := []string{"0", "0.5", "3", "250"}
	for _, rate := range rates {
		got := PurchaseSuggestion(materials[0], dec(t, rate), 30)
		if got.LessThan(decimal.Zero) {
			t.Fatalf("suggestion for rate %s is negative: %s", rate, got)
		}
	}
}

func TestCriticalItems_BoundaryIsInclusive(t *testing.T) {
	materials := testMaterials(t)
	materials[0].CurrentStock = materials[0].MinimumStock

	critical := CriticalItems(materials)

	if len(critical) != 1 || critical[0].ID != "mat-flour" {
		t.Fatalf("expected flour to be critical, got %v", critical)
	}
}

func TestInventoryValue(t *testing.T) {
	materials := testMaterials(t)

	// 120 × 2.80 + 80 × 3.20
	equalDecimal(t, "InventoryValue", InventoryValue(materials), "592")
}
