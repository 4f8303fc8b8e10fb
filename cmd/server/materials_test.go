package main

import (
	"net/http"
	"testing"
)

func TestMaterialCreateAndList(t *testing.T) {
	srv := newTestServer(t)
	seedTestSupplier(t, srv, "sup-1", "Distribuidora Andina", 7)

	rr := doRequest(t, srv, http.MethodPost, "/api/materials/", `{
		"code": "MP-010",
		"name": "Mantequilla",
		"unit": "kg",
		"unit_cost": "9.50",
		"current_stock": "30",
		"minimum_stock": "10",
		"waste_percent": "3",
		"supplier_ids": ["sup-1"]
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created materialPayload
	decodeBody(t, rr, &created)
	if created.ID == "" {
		t.Fatal("expected a generated material id")
	}
	equalDecimal(t, "unit_cost", created.UnitCost, "9.50")
	equalDecimal(t, "waste_percent", created.WastePercent, "3")
	if len(created.Suppliers) != 1 || created.Suppliers[0].Name != "Distribuidora Andina" {
		t.Fatalf("expected the linked supplier, got %v", created.Suppliers)
	}
	if created.Suppliers[0].LeadTimeDays != 7 {
		t.Fatalf("supplier lead_time_days = %d, want 7", created.Suppliers[0].LeadTimeDays)
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/materials/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var listed []materialPayload
	decodeBody(t, rr, &listed)
	if len(listed) != 1 || listed[0].Code != "MP-010" {
		t.Fatalf("expected the created material in the list, got %v", listed)
	}
}

func TestMaterialCreateRejectsNegativeValues(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/api/materials/", `{
		"code": "MP-011",
		"name": "Sal",
		"unit": "kg",
		"unit_cost": "-1"
	}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMaterialUpdate(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")

	rr := doRequest(t, srv, http.MethodPost, "/api/materials/mat-1", `{
		"name": "Harina de trigo",
		"unit": "kg",
		"unit_cost": "3.10",
		"current_stock": "150",
		"minimum_stock": "40",
		"waste_percent": "5"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated materialPayload
	decodeBody(t, rr, &updated)
	equalDecimal(t, "unit_cost", updated.UnitCost, "3.10")
	equalDecimal(t, "current_stock", updated.CurrentStock, "150")

	if got := queryDecimalColumn(t, srv, `SELECT unit_cost FROM raw_materials WHERE id = 'mat-1'`); got != "3.1" {
		t.Fatalf("stored unit_cost = %q, want %q", got, "3.1")
	}
}

func TestMaterialUpdateNotFound(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/api/materials/mat-ghost", `{
		"name": "Fantasma",
		"unit": "kg"
	}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMaterialsCriticalBoundaryIsInclusive(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")
	seedTestMaterial(t, srv, "mat-2", "MP-002", "Azúcar refinada", "3.20", "25", "25", "2")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/critical", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var critical []materialPayload
	decodeBody(t, rr, &critical)
	if len(critical) != 1 || critical[0].ID != "mat-2" {
		t.Fatalf("expected only the at-minimum material, got %v", critical)
	}
}

func TestInventoryValue(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")
	seedTestMaterial(t, srv, "mat-2", "MP-002", "Azúcar refinada", "3.20", "80", "25", "2")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/value", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload struct {
		InventoryValue string `json:"inventory_value"`
	}
	decodeBody(t, rr, &payload)
	if payload.InventoryValue != "592" {
		t.Fatalf("inventory_value = %q, want %q", payload.InventoryValue, "592")
	}
}

func TestMaterialRupture(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/mat-1/rupture?daily_rate=7", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var bounded struct {
		Bounded bool  `json:"bounded"`
		Days    int64 `json:"days"`
	}
	decodeBody(t, rr, &bounded)
	if !bounded.Bounded || bounded.Days != 17 {
		t.Fatalf("expected bounded rupture in 17 days, got %+v", bounded)
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/materials/mat-1/rupture?daily_rate=0", "")
	decodeBody(t, rr, &bounded)
	if bounded.Bounded {
		t.Fatalf("expected unbounded rupture for zero consumption, got %+v", bounded)
	}
}

func TestMaterialRuptureRequiresDailyRate(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/mat-1/rupture", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMaterialPurchaseSuggestion(t *testing.T) {
	srv := newTestServer(t)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/mat-1/purchase-suggestion?daily_rate=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		SuggestedQuantity string `json:"suggested_quantity"`
	}
	decodeBody(t, rr, &payload)
	if payload.SuggestedQuantity != "18" {
		t.Fatalf("suggested_quantity = %q, want %q", payload.SuggestedQuantity, "18")
	}
}

func TestMaterialPurchaseSuggestionUsesSupplierLeadTime(t *testing.T) {
	srv := newTestServer(t)
	seedTestSupplier(t, srv, "sup-1", "Distribuidora Andina", 7)
	seedTestMaterial(t, srv, "mat-1", "MP-001", "Harina de trigo", "2.80", "120", "40", "5")
	linkTestSupplier(t, srv, "mat-1", "sup-1")

	rr := doRequest(t, srv, http.MethodGet, "/api/materials/mat-1/purchase-suggestion?daily_rate=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		SuggestedQuantity string `json:"suggested_quantity"`
	}
	decodeBody(t, rr, &payload)
	if payload.SuggestedQuantity != "39" {
		t.Fatalf("suggested_quantity = %q, want %q", payload.SuggestedQuantity, "39")
	}
}
