package costing

import "github.com/shopspring/decimal"

// SimulatePrice recomputes the calculation as if the product were sold at
// newSalePrice. The product is received by value and the override happens on
// the copy, so caller-owned state is never mutated, not even transiently.
func SimulatePrice(p Product, newSalePrice decimal.Decimal) (Calculation, error) {
	p.SalePrice = newSalePrice
	return Calculate(p)
}

// VolumeForTargetProfit returns the unit volume, rounded up, required for the
// product to earn targetProfit over its allocated fixed cost. A non-positive
// contribution margin returns zero.
func VolumeForTargetProfit(p Product, targetProfit decimal.Decimal) (int64, error) {
	if p.BOM == nil {
		return 0, ErrMissingBOM
	}

	rawMaterials := RawMaterialsCost(*p.BOM)
	labor := LaborCost(*p.BOM)
	indirect := IndirectCosts(*p.BOM)
	production := rawMaterials.Add(labor).Add(indirect).
		Add(LossCost(rawMaterials, labor, indirect, p.AverageLossPercent))

	contribution := p.SalePrice.Sub(production)
	if contribution.LessThanOrEqual(decimal.Zero) {
		return 0, nil
	}

	return p.AllocatedFixedCost.Add(targetProfit).Div(contribution).Ceil().IntPart(), nil
}

// SimulateMaterialCost recomputes the calculation with one referenced raw
// material's unit cost replaced. Items and the overridden material are copied;
// every other item keeps its shared reference untouched.
func SimulateMaterialCost(p Product, rawMaterialID string, newUnitCost decimal.Decimal) (Calculation, error) {
	if p.BOM == nil {
		return Calculation{}, ErrMissingBOM
	}

	bom := *p.BOM
	bom.Items = make([]BOMItem, len(p.BOM.Items))
	copy(bom.Items, p.BOM.Items)
	for i, item := range bom.Items {
		if item.RawMaterialID != rawMaterialID || item.Material == nil {
			continue
		}
		material := *item.Material
		material.UnitCost = newUnitCost
		bom.Items[i].Material = &material
	}

	p.BOM = &bom
	return Calculate(p)
}
