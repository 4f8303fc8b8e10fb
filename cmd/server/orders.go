package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
	"github.com/induscol/planta/internal/stock"
)

type orderPayload struct {
	ID            string               `json:"id"`
	ProductID     string               `json:"product_id"`
	Quantity      decimal.Decimal      `json:"quantity"`
	Status        stock.OrderStatus    `json:"status"`
	PlannedDate   time.Time            `json:"planned_date"`
	CompletedDate *time.Time           `json:"completed_date,omitempty"`
	ActualCost    *decimal.Decimal     `json:"actual_cost,omitempty"`
	Cost          *costing.Calculation `json:"cost,omitempty"`
}

func orderToPayload(order storedOrder) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Status:        order.Status,
		PlannedDate:   order.PlannedDate,
		CompletedDate: order.CompletedDate,
		ActualCost:    order.ActualCost,
	}
	if order.CostJSON != "" {
		var calc costing.Calculation
		if err := json.Unmarshal([]byte(order.CostJSON), &calc); err == nil {
			payload.Cost = &calc
		}
	}
	return payload
}

func (s *server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	orders, err := s.listOrders()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudieron cargar las órdenes de producción")
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, orderToPayload(order))
	}
	respondJSON(w, http.StatusOK, payload)
}

type orderRequest struct {
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	PlannedDate time.Time       `json:"planned_date"`
}

type orderCreateResponse struct {
	Success               bool                 `json:"success"`
	InsufficientMaterials []string             `json:"insufficient_materials,omitempty"`
	Order                 *orderPayload        `json:"order,omitempty"`
	Cost                  *costing.Calculation `json:"cost,omitempty"`
}

// handleOrderCreate is the order-validation workflow: the stock check runs
// first; only a feasible quantity gets costed, persisted and deducted. Running
// short of a material answers success:false with HTTP 200, because "cannot
// produce yet" is an expected business outcome.
func (s *server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id es requerido")
		return
	}
	if !req.Quantity.IsPositive() {
		respondError(w, http.StatusBadRequest, "quantity debe ser mayor a 0")
		return
	}
	if req.PlannedDate.IsZero() {
		req.PlannedDate = time.Now()
	}

	product, err := s.loadProduct(req.ProductID)
	if errors.Is(err, errNotFound) {
		respondError(w, http.StatusNotFound, "producto no encontrado")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar el producto")
		return
	}
	if product.BOM == nil {
		respondCostError(w, costing.ErrMissingBOM)
		return
	}

	deductions, insufficient := stock.Plan(*product.BOM, req.Quantity, bomMaterials(*product.BOM))
	if len(insufficient) > 0 {
		respondJSON(w, http.StatusOK, orderCreateResponse{
			Success:               false,
			InsufficientMaterials: insufficient,
		})
		return
	}

	calc, err := costing.Calculate(product)
	if err != nil {
		respondCostError(w, err)
		return
	}

	order := stock.ProductionOrder{
		ID:          newID(),
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		Status:      stock.StatusPlanned,
		PlannedDate: req.PlannedDate,
	}

	err = s.createOrder(order, calc, deductions)
	var insufficientErr insufficientStockError
	if errors.As(err, &insufficientErr) {
		// Another order consumed the stock between plan and commit.
		respondJSON(w, http.StatusOK, orderCreateResponse{
			Success:               false,
			InsufficientMaterials: []string{insufficientErr.MaterialName},
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo crear la orden de producción")
		return
	}

	stored, err := s.getOrder(order.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar la orden creada")
		return
	}
	payload := orderToPayload(stored)
	respondJSON(w, http.StatusCreated, orderCreateResponse{
		Success: true,
		Order:   &payload,
		Cost:    &calc,
	})
}

// bomMaterials collects the distinct resolved materials of a BOM for the stock
// check. Unresolved references are simply absent, so the planner reports them
// as insufficient by id.
func bomMaterials(bom costing.BillOfMaterials) []costing.RawMaterial {
	seen := make(map[string]bool, len(bom.Items))
	materials := make([]costing.RawMaterial, 0, len(bom.Items))
	for _, item := range bom.Items {
		if item.Material == nil || seen[item.Material.ID] {
			continue
		}
		seen[item.Material.ID] = true
		materials = append(materials, *item.Material)
	}
	return materials
}

func (s *server) handleOrderStart(w http.ResponseWriter, r *http.Request) {
	s.transitionOrder(w, r, []stock.OrderStatus{stock.StatusPlanned}, stock.StatusInProgress, nil)
}

type completeOrderRequest struct {
	ActualCost *decimal.Decimal `json:"actual_cost"`
}

func (s *server) handleOrderComplete(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
			return
		}
		if req.ActualCost != nil && req.ActualCost.IsNegative() {
			respondError(w, http.StatusBadRequest, "actual_cost debe ser mayor o igual a 0")
			return
		}
	}

	s.transitionOrder(w, r, []stock.OrderStatus{stock.StatusInProgress}, stock.StatusCompleted, req.ActualCost)
}

func (s *server) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	s.transitionOrder(w, r, []stock.OrderStatus{stock.StatusPlanned, stock.StatusInProgress}, stock.StatusCancelled, nil)
}

func (s *server) transitionOrder(w http.ResponseWriter, r *http.Request, from []stock.OrderStatus, to stock.OrderStatus, actualCost *decimal.Decimal) {
	id := chi.URLParam(r, "id")

	var completedDate *time.Time
	if to == stock.StatusCompleted {
		now := time.Now()
		completedDate = &now
	}

	err := s.updateOrderStatus(id, from, to, completedDate, actualCost)
	if errors.Is(err, errNotFound) {
		respondError(w, http.StatusNotFound, "orden de producción no encontrada")
		return
	}
	if errors.Is(err, errInvalidTransition) {
		respondError(w, http.StatusConflict, "transición de estado inválida")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo actualizar la orden de producción")
		return
	}

	order, err := s.getOrder(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar la orden actualizada")
		return
	}
	respondJSON(w, http.StatusOK, orderToPayload(order))
}
