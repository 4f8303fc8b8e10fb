package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
)

type productSummary struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	SalePrice             decimal.Decimal `json:"sale_price"`
	AllocatedFixedCost    decimal.Decimal `json:"allocated_fixed_cost"`
	ProductionTimeMinutes decimal.Decimal `json:"production_time_minutes"`
	AverageLossPercent    decimal.Decimal `json:"average_loss_percent"`
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.listProducts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudieron cargar los productos")
		return
	}

	payload := make([]productSummary, 0, len(products))
	for _, product := range products {
		payload = append(payload, productSummary{
			ID:                    product.ID,
			Name:                  product.Name,
			SalePrice:             product.SalePrice,
			AllocatedFixedCost:    product.AllocatedFixedCost,
			ProductionTimeMinutes: product.ProductionTimeMinutes,
			AverageLossPercent:    product.AverageLossPercent,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

type bomItemRequest struct {
	RawMaterialID string          `json:"raw_material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

type productionStepRequest struct {
	Name               string          `json:"name"`
	TimeMinutes        decimal.Decimal `json:"time_minutes"`
	LaborCostPerHour   decimal.Decimal `json:"labor_cost_per_hour"`
	IndirectCosts      decimal.Decimal `json:"indirect_costs"`
	AverageLossPercent decimal.Decimal `json:"average_loss_percent"`
}

type productRequest struct {
	Name                  string                  `json:"name"`
	SalePrice             decimal.Decimal         `json:"sale_price"`
	AllocatedFixedCost    decimal.Decimal         `json:"allocated_fixed_cost"`
	ProductionTimeMinutes decimal.Decimal         `json:"production_time_minutes"`
	AverageLossPercent    decimal.Decimal         `json:"average_loss_percent"`
	Items                 []bomItemRequest        `json:"items"`
	Steps                 []productionStepRequest `json:"steps"`
}

func (req productRequest) validate() error {
	if req.Name == "" {
		return errors.New("name es requerido")
	}
	for _, check := range []struct {
		field string
		value decimal.Decimal
	}{
		{"sale_price", req.SalePrice},
		{"allocated_fixed_cost", req.AllocatedFixedCost},
		{"production_time_minutes", req.ProductionTimeMinutes},
		{"average_loss_percent", req.AverageLossPercent},
	} {
		if check.value.IsNegative() {
			return errors.New(check.field + " debe ser mayor o igual a 0")
		}
	}
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if item.RawMaterialID == "" {
			return errors.New("raw_material_id es requerido en cada item")
		}
		if seen[item.RawMaterialID] {
			return errors.New("la lista de materiales repite la materia prima " + item.RawMaterialID)
		}
		seen[item.RawMaterialID] = true
		if !item.Quantity.IsPositive() {
			return errors.New("quantity del item debe ser mayor a 0")
		}
	}
	for _, step := range req.Steps {
		if step.Name == "" {
			return errors.New("name es requerido en cada paso")
		}
		if step.TimeMinutes.IsNegative() || step.LaborCostPerHour.IsNegative() ||
			step.IndirectCosts.IsNegative() || step.AverageLossPercent.IsNegative() {
			return errors.New("los valores de los pasos deben ser mayores o iguales a 0")
		}
	}
	return nil
}

func (s *server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := costing.Product{
		ID:                    newID(),
		Name:                  req.Name,
		SalePrice:             req.SalePrice,
		AllocatedFixedCost:    req.AllocatedFixedCost,
		ProductionTimeMinutes: req.ProductionTimeMinutes,
		AverageLossPercent:    req.AverageLossPercent,
	}
	if len(req.Items) > 0 || len(req.Steps) > 0 {
		bom := &costing.BillOfMaterials{}
		for _, item := range req.Items {
			bom.Items = append(bom.Items, costing.BOMItem{
				RawMaterialID: item.RawMaterialID,
				Quantity:      item.Quantity,
				Unit:          item.Unit,
			})
		}
		for _, step := range req.Steps {
			bom.Steps = append(bom.Steps, costing.ProductionStep{
				Name:               step.Name,
				TimeMinutes:        step.TimeMinutes,
				LaborCostPerHour:   step.LaborCostPerHour,
				IndirectCosts:      step.IndirectCosts,
				AverageLossPercent: step.AverageLossPercent,
			})
		}
		product.BOM = bom
	}

	if err := s.insertProduct(product); err != nil {
		respondError(w, http.StatusBadRequest, "no se pudo crear el producto; verifique las materias primas referenciadas")
		return
	}

	respondJSON(w, http.StatusCreated, productSummary{
		ID:                    product.ID,
		Name:                  product.Name,
		SalePrice:             product.SalePrice,
		AllocatedFixedCost:    product.AllocatedFixedCost,
		ProductionTimeMinutes: product.ProductionTimeMinutes,
		AverageLossPercent:    product.AverageLossPercent,
	})
}

func (s *server) handleProductCost(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromURL(w, r)
	if !ok {
		return
	}

	calc, err := costing.Calculate(product)
	if err != nil {
		respondCostError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calc)
}

type priceSimulationRequest struct {
	NewSalePrice decimal.Decimal `json:"new_sale_price"`
}

func (s *server) handleSimulatePrice(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromURL(w, r)
	if !ok {
		return
	}

	var req priceSimulationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if req.NewSalePrice.IsNegative() {
		respondError(w, http.StatusBadRequest, "new_sale_price debe ser mayor o igual a 0")
		return
	}

	calc, err := costing.SimulatePrice(product, req.NewSalePrice)
	if err != nil {
		respondCostError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calc)
}

type targetProfitRequest struct {
	TargetProfit decimal.Decimal `json:"target_profit"`
}

func (s *server) handleSimulateTargetProfit(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromURL(w, r)
	if !ok {
		return
	}

	var req targetProfitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}

	volume, err := costing.VolumeForTargetProfit(product, req.TargetProfit)
	if err != nil {
		respondCostError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"required_volume": volume})
}

type materialCostSimulationRequest struct {
	RawMaterialID string          `json:"raw_material_id"`
	NewUnitCost   decimal.Decimal `json:"new_unit_cost"`
}

func (s *server) handleSimulateMaterialCost(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromURL(w, r)
	if !ok {
		return
	}

	var req materialCostSimulationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if req.RawMaterialID == "" {
		respondError(w, http.StatusBadRequest, "raw_material_id es requerido")
		return
	}
	if req.NewUnitCost.IsNegative() {
		respondError(w, http.StatusBadRequest, "new_unit_cost debe ser mayor o igual a 0")
		return
	}

	calc, err := costing.SimulateMaterialCost(product, req.RawMaterialID, req.NewUnitCost)
	if err != nil {
		respondCostError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, calc)
}

func (s *server) productFromURL(w http.ResponseWriter, r *http.Request) (costing.Product, bool) {
	product, err := s.loadProduct(chi.URLParam(r, "id"))
	if errors.Is(err, errNotFound) {
		respondError(w, http.StatusNotFound, "producto no encontrado")
		return costing.Product{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar el producto")
		return costing.Product{}, false
	}
	return product, true
}

// respondCostError distinguishes "cost unavailable" from a cost of zero: the
// client gets a 422 with a stable reason code instead of an empty snapshot.
func respondCostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, costing.ErrMissingBOM):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "el producto no tiene lista de materiales",
			"reason": "missing_bom",
		})
	case errors.Is(err, costing.ErrDegenerateInput):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "los datos del producto no permiten calcular el costo",
			"reason": "degenerate_input",
		})
	default:
		respondError(w, http.StatusInternalServerError, "no se pudo calcular el costo")
	}
}
