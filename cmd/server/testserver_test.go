package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/db"
	"github.com/induscol/planta/internal/migrations"
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
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "server-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	database.SetMaxOpenConns(1)

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = database.Close() })

	return &server{auth: newAuthService(database, "test-secret"), db: database}
}

// doRequest sends an authenticated JSON request through the full router.
func doRequest(t *testing.T, srv *server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{
		Name:  sessionCookieName,
		Value: srv.auth.createSessionValue("admin@planta.local"),
	})

	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func seedTestSupplier(t *testing.T, srv *server, id, name string, leadTimeDays int) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO suppliers (id, name, lead_time_days, active)
		VALUES (?, ?, ?, TRUE)
	`, id, name, leadTimeDays)
	if err != nil {
		t.Fatalf("seed supplier: %v", err)
	}
}

func seedTestMaterial(t *testing.T, srv *server, id, code, name, unitCost, currentStock, minimumStock, wastePercent string) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO raw_materials (id, code, name, unit, unit_cost, current_stock, minimum_stock, waste_percent, active)
		VALUES (?, ?, ?, 'kg', ?, ?, ?, ?, TRUE)
	`, id, code, name, unitCost, currentStock, minimumStock, wastePercent)
	if err != nil {
		t.Fatalf("seed material: %v", err)
	}
}

func linkTestSupplier(t *testing.T, srv *server, materialID, supplierID string) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO material_suppliers (material_id, supplier_id, position)
		VALUES (?, ?, 0)
	`, materialID, supplierID)
	if err != nil {
		t.Fatalf("link supplier: %v", err)
	}
}

func seedTestProduct(t *testing.T, srv *server, id, name, salePrice, fixedCost, lossPercent string) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO products (id, name, sale_price, allocated_fixed_cost, production_time_minutes, average_loss_percent)
		VALUES (?, ?, ?, ?, '0', ?)
	`, id, name, salePrice, fixedCost, lossPercent)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func seedTestBOMItem(t *testing.T, srv *server, productID, materialID, quantity string, position int) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO bom_items (id, product_id, raw_material_id, quantity, unit, position)
		VALUES (?, ?, ?, ?, 'kg', ?)
	`, newID(), productID, materialID, quantity, position)
	if err != nil {
		t.Fatalf("seed BOM item: %v", err)
	}
}

func seedTestStep(t *testing.T, srv *server, productID, name, timeMinutes, laborCostPerHour, indirectCosts string, position int) {
	t.Helper()

	_, err := srv.db.Exec(`
		INSERT INTO production_steps (id, product_id, name, time_minutes, labor_cost_per_hour, indirect_costs, average_loss_percent, position)
		VALUES (?, ?, ?, ?, ?, ?, '0', ?)
	`, newID(), productID, name, timeMinutes, laborCostPerHour, indirectCosts, position)
	if err != nil {
		t.Fatalf("seed production step: %v", err)
	}
}

func queryDecimalColumn(t *testing.T, srv *server, query string, args ...any) string {
	t.Helper()

	var value string
	if err := srv.db.QueryRow(query, args...).Scan(&value); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return value
}
