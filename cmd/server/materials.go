package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
	"github.com/induscol/planta/internal/stock"
)

type supplierPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LeadTimeDays int    `json:"lead_time_days"`
}

type materialPayload struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Unit         string            `json:"unit"`
	UnitCost     decimal.Decimal   `json:"unit_cost"`
	CurrentStock decimal.Decimal   `json:"current_stock"`
	MinimumStock decimal.Decimal   `json:"minimum_stock"`
	WastePercent decimal.Decimal   `json:"waste_percent"`
	Suppliers    []supplierPayload `json:"suppliers"`
}

func materialToPayload(material costing.RawMaterial) materialPayload {
	suppliers := make([]supplierPayload, 0, len(material.Suppliers))
	for _, supplier := range material.Suppliers {
		suppliers = append(suppliers, supplierPayload{
			ID:           supplier.ID,
			Name:         supplier.Name,
			LeadTimeDays: supplier.LeadTimeDays,
		})
	}
	return materialPayload{
		ID:           material.ID,
		Code:         material.Code,
		Name:         material.Name,
		Unit:         material.Unit,
		UnitCost:     material.UnitCost,
		CurrentStock: material.CurrentStock,
		MinimumStock: material.MinimumStock,
		WastePercent: material.WastePercent,
		Suppliers:    suppliers,
	}
}

func (s *server) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	materials, err := s.listMaterials()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudieron cargar las materias primas")
		return
	}

	payload := make([]materialPayload, 0, len(materials))
	for _, material := range materials {
		payload = append(payload, materialToPayload(material))
	}
	respondJSON(w, http.StatusOK, payload)
}

type materialRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	WastePercent decimal.Decimal `json:"waste_percent"`
	SupplierIDs  []string        `json:"supplier_ids"`
}

func (req materialRequest) validate() error {
	if req.Name == "" {
		return errors.New("name es requerido")
	}
	if req.Unit == "" {
		return errors.New("unit es requerido")
	}
	for _, check := range []struct {
		field string
		value decimal.Decimal
	}{
		{"unit_cost", req.UnitCost},
		{"current_stock", req.CurrentStock},
		{"minimum_stock", req.MinimumStock},
		{"waste_percent", req.WastePercent},
	} {
		if check.value.IsNegative() {
			return errors.New(check.field + " debe ser mayor o igual a 0")
		}
	}
	return nil
}

func (s *server) handleMaterialCreate(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code es requerido")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	material := costing.RawMaterial{
		ID:           newID(),
		Code:         req.Code,
		Name:         req.Name,
		Unit:         req.Unit,
		UnitCost:     req.UnitCost,
		CurrentStock: req.CurrentStock,
		MinimumStock: req.MinimumStock,
		WastePercent: req.WastePercent,
	}
	if err := s.insertMaterial(material, req.SupplierIDs); err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo crear la materia prima")
		return
	}

	created, err := s.getMaterial(material.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar la materia prima creada")
		return
	}
	respondJSON(w, http.StatusCreated, materialToPayload(created))
}

func (s *server) handleMaterialUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req materialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo de solicitud inválido")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	material := costing.RawMaterial{
		ID:           id,
		Name:         req.Name,
		Unit:         req.Unit,
		UnitCost:     req.UnitCost,
		CurrentStock: req.CurrentStock,
		MinimumStock: req.MinimumStock,
		WastePercent: req.WastePercent,
	}
	err := s.updateMaterial(material)
	if errors.Is(err, errNotFound) {
		respondError(w, http.StatusNotFound, "materia prima no encontrada")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo actualizar la materia prima")
		return
	}

	updated, err := s.getMaterial(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar la materia prima actualizada")
		return
	}
	respondJSON(w, http.StatusOK, materialToPayload(updated))
}

func (s *server) handleMaterialsCritical(w http.ResponseWriter, r *http.Request) {
	materials, err := s.listMaterials()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudieron cargar las materias primas")
		return
	}

	critical := stock.CriticalItems(materials)
	payload := make([]materialPayload, 0, len(critical))
	for _, material := range critical {
		payload = append(payload, materialToPayload(material))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleInventoryValue(w http.ResponseWriter, r *http.Request) {
	materials, err := s.listMaterials()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudieron cargar las materias primas")
		return
	}

	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"inventory_value": stock.InventoryValue(materials),
	})
}

func (s *server) handleMaterialRupture(w http.ResponseWriter, r *http.Request) {
	material, ok := s.materialFromURL(w, r)
	if !ok {
		return
	}

	dailyRate, err := parseDecimalParam(r, "daily_rate")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, bounded := stock.RuptureDays(material, dailyRate)
	if !bounded {
		respondJSON(w, http.StatusOK, map[string]any{"bounded": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"bounded": true, "days": days})
}

func (s *server) handleMaterialPurchaseSuggestion(w http.ResponseWriter, r *http.Request) {
	material, ok := s.materialFromURL(w, r)
	if !ok {
		return
	}

	dailyRate, err := parseDecimalParam(r, "daily_rate")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			respondError(w, http.StatusBadRequest, "days debe ser un entero mayor o igual a 0")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"suggested_quantity": stock.PurchaseSuggestion(material, dailyRate, days),
	})
}

func (s *server) materialFromURL(w http.ResponseWriter, r *http.Request) (costing.RawMaterial, bool) {
	material, err := s.getMaterial(chi.URLParam(r, "id"))
	if errors.Is(err, errNotFound) {
		respondError(w, http.StatusNotFound, "materia prima no encontrada")
		return costing.RawMaterial{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "no se pudo cargar la materia prima")
		return costing.RawMaterial{}, false
	}
	return material, true
}
