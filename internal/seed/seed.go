package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	defaultSupplierName = "Distribuidora Andina"
	demoProductName     = "Caja de galletas artesanales"
)

type seedMaterial struct {
	code         string
	name         string
	unit         string
	unitCost     string
	currentStock string
	minimumStock string
	wastePercent string
}

var defaultMaterials = []seedMaterial{
	{code: "MP-001", name: "Harina de trigo", unit: "kg", unitCost: "2.80", currentStock: "120", minimumStock: "40", wastePercent: "5"},
	{code: "MP-002", name: "Azúcar refinada", unit: "kg", unitCost: "3.20", currentStock: "80", minimumStock: "25", wastePercent: "2"},
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way: an admin user, a default
// supplier, two raw materials and a demo product with its bill of materials.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	supplierID, err := ensureSupplier(tx, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	materialIDs, err := ensureMaterials(tx, supplierID, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDemoProduct(tx, materialIDs, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// hashPassword must stay in sync with the login handler's hashing.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func ensureSupplier(tx *sql.Tx, stats *Stats) (string, error) {
	var id string
	err := tx.QueryRow(`SELECT id FROM suppliers WHERE name = ? LIMIT 1`, defaultSupplierName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("check default supplier existence: %w", err)
	}

	id = uuid.NewString()
	if _, err := tx.Exec(`
		INSERT INTO suppliers (id, name, lead_time_days, active)
		VALUES (?, ?, ?, TRUE)
	`, id, defaultSupplierName, 7); err != nil {
		return "", fmt.Errorf("insert default supplier: %w", err)
	}
	stats.Inserts++
	return id, nil
}

func ensureMaterials(tx *sql.Tx, supplierID string, stats *Stats) (map[string]string, error) {
	ids := make(map[string]string, len(defaultMaterials))
	for _, m := range defaultMaterials {
		var id string
		err := tx.QueryRow(`SELECT id FROM raw_materials WHERE code = ? LIMIT 1`, m.code).Scan(&id)
		if err == nil {
			ids[m.code] = id
			continue
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("check material %s existence: %w", m.code, err)
		}

		id = uuid.NewString()
		if _, err := tx.Exec(`
			INSERT INTO raw_materials (id, code, name, unit, unit_cost, current_stock, minimum_stock, waste_percent, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE)
		`, id, m.code, m.name, m.unit, m.unitCost, m.currentStock, m.minimumStock, m.wastePercent); err != nil {
			return nil, fmt.Errorf("insert material %s: %w", m.code, err)
		}
		stats.Inserts++

		if _, err := tx.Exec(`
			INSERT INTO material_suppliers (material_id, supplier_id, position)
			VALUES (?, ?, 0)
		`, id, supplierID); err != nil {
			return nil, fmt.Errorf("link material %s to supplier: %w", m.code, err)
		}
		stats.Inserts++

		ids[m.code] = id
	}
	return ids, nil
}

func ensureDemoProduct(tx *sql.Tx, materialIDs map[string]string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM products WHERE name = ? LIMIT 1)`, demoProductName).Scan(&exists); err != nil {
		return fmt.Errorf("check demo product existence: %w", err)
	}
	if exists {
		return nil
	}

	productID := uuid.NewString()
	if _, err := tx.Exec(`
		INSERT INTO products (id, name, sale_price, allocated_fixed_cost, production_time_minutes, average_loss_percent)
		VALUES (?, ?, ?, ?, ?, ?)
	`, productID, demoProductName, "48", "6", "65", "4"); err != nil {
		return fmt.Errorf("insert demo product: %w", err)
	}
	stats.Inserts++

	items := []struct {
		code     string
		quantity string
		unit     string
	}{
		{code: "MP-001", quantity: "0.5", unit: "kg"},
		{code: "MP-002", quantity: "0.25", unit: "kg"},
	}
	for i, item := range items {
		if _, err := tx.Exec(`
			INSERT INTO bom_items (id, product_id, raw_material_id, quantity, unit, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), productID, materialIDs[item.code], item.quantity, item.unit, i); err != nil {
			return fmt.Errorf("insert demo BOM item %s: %w", item.code, err)
		}
		stats.Inserts++
	}

	steps := []struct {
		name             string
		timeMinutes      string
		laborCostPerHour string
		indirectCosts    string
	}{
		{name: "Mezclado", timeMinutes: "20", laborCostPerHour: "18", indirectCosts: "1.5"},
		{name: "Horneado", timeMinutes: "45", laborCostPerHour: "15", indirectCosts: "3"},
	}
	for i, step := range steps {
		if _, err := tx.Exec(`
			INSERT INTO production_steps (id, product_id, name, time_minutes, labor_cost_per_hour, indirect_costs, average_loss_percent, position)
			VALUES (?, ?, ?, ?, ?, ?, '0', ?)
		`, uuid.NewString(), productID, step.name, step.timeMinutes, step.laborCostPerHour, step.indirectCosts, i); err != nil {
			return fmt.Errorf("insert demo production step %s: %w", step.name, err)
		}
		stats.Inserts++
	}

	return nil
}
