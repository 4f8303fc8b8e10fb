package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/costing"
	"github.com/induscol/planta/internal/stock"
)

var errNotFound = errors.New("not found")

// insufficientStockError reports a material whose stock no longer covered its
// deduction at commit time. Mapped to a success:false response, not a 5xx.
type insufficientStockError struct {
	MaterialName string
}

func (e insufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.MaterialName)
}

func parseStoredDecimal(raw, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s value %q: %w", column, raw, err)
	}
	return d, nil
}

func (s *server) listMaterials() ([]costing.RawMaterial, error) {
	rows, err := s.db.Query(`
		SELECT id, code, name, unit, unit_cost, current_stock, minimum_stock, waste_percent
		FROM raw_materials
		WHERE active
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("query raw materials: %w", err)
	}
	defer rows.Close()

	materials := make([]costing.RawMaterial, 0)
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, material)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw materials: %w", err)
	}

	for i := range materials {
		if materials[i].Suppliers, err = s.listMaterialSuppliers(materials[i].ID); err != nil {
			return nil, err
		}
	}

	return materials, nil
}

func (s *server) getMaterial(id string) (costing.RawMaterial, error) {
	row := s.db.QueryRow(`
		SELECT id, code, name, unit, unit_cost, current_stock, minimum_stock, waste_percent
		FROM raw_materials
		WHERE id = ? AND active
	`, id)

	material, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return costing.RawMaterial{}, errNotFound
	}
	if err != nil {
		return costing.RawMaterial{}, err
	}

	if material.Suppliers, err = s.listMaterialSuppliers(material.ID); err != nil {
		return costing.RawMaterial{}, err
	}
	return material, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (costing.RawMaterial, error) {
	var material costing.RawMaterial
	var unitCost, currentStock, minimumStock, wastePercent string
	if err := row.Scan(
		&material.ID,
		&material.Code,
		&material.Name,
		&material.Unit,
		&unitCost,
		&currentStock,
		&minimumStock,
		&wastePercent,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return costing.RawMaterial{}, err
		}
		return costing.RawMaterial{}, fmt.Errorf("scan raw material: %w", err)
	}

	var err error
	if material.UnitCost, err = parseStoredDecimal(unitCost, "unit_cost"); err != nil {
		return costing.RawMaterial{}, err
	}
	if material.CurrentStock, err = parseStoredDecimal(currentStock, "current_stock"); err != nil {
		return costing.RawMaterial{}, err
	}
	if material.MinimumStock, err = parseStoredDecimal(minimumStock, "minimum_stock"); err != nil {
		return costing.RawMaterial{}, err
	}
	if material.WastePercent, err = parseStoredDecimal(wastePercent, "waste_percent"); err != nil {
		return costing.RawMaterial{}, err
	}
	return material, nil
}

func (s *server) listMaterialSuppliers(materialID string) ([]costing.Supplier, error) {
	rows, err := s.db.Query(`
		SELECT sp.id, sp.name, sp.lead_time_days
		FROM material_suppliers ms
		JOIN suppliers sp ON sp.id = ms.supplier_id
		WHERE ms.material_id = ?
		ORDER BY ms.position
	`, materialID)
	if err != nil {
		return nil, fmt.Errorf("query material suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]costing.Supplier, 0)
	for rows.Next() {
		var supplier costing.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.LeadTimeDays); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}
	return suppliers, nil
}

func (s *server) insertMaterial(material costing.RawMaterial, supplierIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert material: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO raw_materials (id, code, name, unit, unit_cost, current_stock, minimum_stock, waste_percent, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE)
	`,
		material.ID,
		material.Code,
		material.Name,
		material.Unit,
		material.UnitCost.String(),
		material.CurrentStock.String(),
		material.MinimumStock.String(),
		material.WastePercent.String(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert raw material: %w", err)
	}

	for i, supplierID := range supplierIDs {
		if _, err := tx.Exec(`
			INSERT INTO material_suppliers (material_id, supplier_id, position)
			VALUES (?, ?, ?)
		`, material.ID, supplierID, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("link supplier: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert material: %w", err)
	}
	return nil
}

func (s *server) updateMaterial(material costing.RawMaterial) error {
	result, err := s.db.Exec(`
		UPDATE raw_materials
		SET
			name = ?,
			unit = ?,
			unit_cost = ?,
			current_stock = ?,
			minimum_stock = ?,
			waste_percent = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active
	`,
		material.Name,
		material.Unit,
		material.UnitCost.String(),
		material.CurrentStock.String(),
		material.MinimumStock.String(),
		material.WastePercent.String(),
		material.ID,
	)
	if err != nil {
		return fmt.Errorf("update raw material: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update raw material: %w", err)
	}
	if affected == 0 {
		return errNotFound
	}
	return nil
}

func (s *server) listProducts() ([]costing.Product, error) {
	rows, err := s.db.Query(`
		SELECT id, name, sale_price, allocated_fixed_cost, production_time_minutes, average_loss_percent
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]costing.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (costing.Product, error) {
	var product costing.Product
	var salePrice, fixedCost, productionTime, lossPercent string
	if err := row.Scan(
		&product.ID,
		&product.Name,
		&salePrice,
		&fixedCost,
		&productionTime,
		&lossPercent,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return costing.Product{}, err
		}
		return costing.Product{}, fmt.Errorf("scan product: %w", err)
	}

	var err error
	if product.SalePrice, err = parseStoredDecimal(salePrice, "sale_price"); err != nil {
		return costing.Product{}, err
	}
	if product.AllocatedFixedCost, err = parseStoredDecimal(fixedCost, "allocated_fixed_cost"); err != nil {
		return costing.Product{}, err
	}
	if product.ProductionTimeMinutes, err = parseStoredDecimal(productionTime, "production_time_minutes"); err != nil {
		return costing.Product{}, err
	}
	if product.AverageLossPercent, err = parseStoredDecimal(lossPercent, "average_loss_percent"); err != nil {
		return costing.Product{}, err
	}
	return product, nil
}

// loadProduct reads a product together with its bill of materials. BOM items
// resolve their raw material reference here; an item whose material row is
// gone keeps a nil Material and degrades downstream as "not found". A product
// with neither items nor steps has no BOM at all.
func (s *server) loadProduct(id string) (costing.Product, error) {
	row := s.db.QueryRow(`
		SELECT id, name, sale_price, allocated_fixed_cost, production_time_minutes, average_loss_percent
		FROM products
		WHERE id = ?
	`, id)

	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return costing.Product{}, errNotFound
	}
	if err != nil {
		return costing.Product{}, err
	}

	items, err := s.loadBOMItems(id)
	if err != nil {
		return costing.Product{}, err
	}
	steps, err := s.loadProductionSteps(id)
	if err != nil {
		return costing.Product{}, err
	}

	if len(items) > 0 || len(steps) > 0 {
		product.BOM = &costing.BillOfMaterials{Items: items, Steps: steps}
	}
	return product, nil
}

func (s *server) loadBOMItems(productID string) ([]costing.BOMItem, error) {
	rows, err := s.db.Query(`
		SELECT
			bi.raw_material_id,
			bi.quantity,
			bi.unit,
			rm.id,
			rm.code,
			rm.name,
			rm.unit,
			rm.unit_cost,
			rm.current_stock,
			rm.minimum_stock,
			rm.waste_percent
		FROM bom_items bi
		LEFT JOIN raw_materials rm ON rm.id = bi.raw_material_id AND rm.active
		WHERE bi.product_id = ?
		ORDER BY bi.position
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query BOM items: %w", err)
	}
	defer rows.Close()

	items := make([]costing.BOMItem, 0)
	for rows.Next() {
		var item costing.BOMItem
		var quantity string
		var matID, matCode, matName, matUnit sql.NullString
		var unitCost, currentStock, minimumStock, wastePercent sql.NullString
		if err := rows.Scan(
			&item.RawMaterialID,
			&quantity,
			&item.Unit,
			&matID,
			&matCode,
			&matName,
			&matUnit,
			&unitCost,
			&currentStock,
			&minimumStock,
			&wastePercent,
		); err != nil {
			return nil, fmt.Errorf("scan BOM item: %w", err)
		}

		if item.Quantity, err = parseStoredDecimal(quantity, "quantity"); err != nil {
			return nil, err
		}

		if matID.Valid {
			material := costing.RawMaterial{
				ID:   matID.String,
				Code: matCode.String,
				Name: matName.String,
				Unit: matUnit.String,
			}
			if material.UnitCost, err = parseStoredDecimal(unitCost.String, "unit_cost"); err != nil {
				return nil, err
			}
			if material.CurrentStock, err = parseStoredDecimal(currentStock.String, "current_stock"); err != nil {
				return nil, err
			}
			if material.MinimumStock, err = parseStoredDecimal(minimumStock.String, "minimum_stock"); err != nil {
				return nil, err
			}
			if material.WastePercent, err = parseStoredDecimal(wastePercent.String, "waste_percent"); err != nil {
				return nil, err
			}
			if material.Suppliers, err = s.listMaterialSuppliers(material.ID); err != nil {
				return nil, err
			}
			item.Material = &material
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate BOM items: %w", err)
	}
	return items, nil
}

func (s *server) loadProductionSteps(productID string) ([]costing.ProductionStep, error) {
	rows, err := s.db.Query(`
		SELECT name, time_minutes, labor_cost_per_hour, indirect_costs, average_loss_percent
		FROM production_steps
		WHERE product_id = ?
		ORDER BY position
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query production steps: %w", err)
	}
	defer rows.Close()

	steps := make([]costing.ProductionStep, 0)
	for rows.Next() {
		var step costing.ProductionStep
		var timeMinutes, laborCost, indirectCosts, lossPercent string
		if err := rows.Scan(&step.Name, &timeMinutes, &laborCost, &indirectCosts, &lossPercent); err != nil {
			return nil, fmt.Errorf("scan production step: %w", err)
		}
		if step.TimeMinutes, err = parseStoredDecimal(timeMinutes, "time_minutes"); err != nil {
			return nil, err
		}
		if step.LaborCostPerHour, err = parseStoredDecimal(laborCost, "labor_cost_per_hour"); err != nil {
			return nil, err
		}
		if step.IndirectCosts, err = parseStoredDecimal(indirectCosts, "indirect_costs"); err != nil {
			return nil, err
		}
		if step.AverageLossPercent, err = parseStoredDecimal(lossPercent, "average_loss_percent"); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate production steps: %w", err)
	}
	return steps, nil
}

func (s *server) insertProduct(product costing.Product) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert product: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO products (id, name, sale_price, allocated_fixed_cost, production_time_minutes, average_loss_percent)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		product.ID,
		product.Name,
		product.SalePrice.String(),
		product.AllocatedFixedCost.String(),
		product.ProductionTimeMinutes.String(),
		product.AverageLossPercent.String(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert product: %w", err)
	}

	if product.BOM != nil {
		for i, item := range product.BOM.Items {
			if _, err := tx.Exec(`
				INSERT INTO bom_items (id, product_id, raw_material_id, quantity, unit, position)
				VALUES (?, ?, ?, ?, ?, ?)
			`, newID(), product.ID, item.RawMaterialID, item.Quantity.String(), item.Unit, i); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert BOM item: %w", err)
			}
		}
		for i, step := range product.BOM.Steps {
			if _, err := tx.Exec(`
				INSERT INTO production_steps (id, product_id, name, time_minutes, labor_cost_per_hour, indirect_costs, average_loss_percent, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				newID(),
				product.ID,
				step.Name,
				step.TimeMinutes.String(),
				step.LaborCostPerHour.String(),
				step.IndirectCosts.String(),
				step.AverageLossPercent.String(),
				i,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert production step: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert product: %w", err)
	}
	return nil
}

// createOrder persists a planned order and applies its stock deductions in a
// single transaction. Every deduction re-reads the current stock inside the
// transaction, so two orders racing over the same material cannot both be
// approved past the available quantity.
func (s *server) createOrder(order stock.ProductionOrder, calc costing.Calculation, deductions []stock.Deduction) error {
	costJSON, err := json.Marshal(calc)
	if err != nil {
		return fmt.Errorf("marshal cost snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}

	for _, deduction := range deductions {
		var name, currentStock string
		err := tx.QueryRow(`
			SELECT name, current_stock FROM raw_materials WHERE id = ? AND active
		`, deduction.RawMaterialID).Scan(&name, &currentStock)
		if errors.Is(err, sql.ErrNoRows) {
			_ = tx.Rollback()
			return insufficientStockError{MaterialName: deduction.RawMaterialID}
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("read stock for deduction: %w", err)
		}

		current, err := parseStoredDecimal(currentStock, "current_stock")
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if current.LessThan(deduction.Quantity) {
			_ = tx.Rollback()
			return insufficientStockError{MaterialName: name}
		}

		if _, err := tx.Exec(`
			UPDATE raw_materials
			SET current_stock = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, current.Sub(deduction.Quantity).String(), deduction.RawMaterialID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply stock deduction: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO production_orders (id, product_id, quantity, status, planned_date, cost_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		order.ID,
		order.ProductID,
		order.Quantity.String(),
		string(order.Status),
		order.PlannedDate.UTC().Format(time.RFC3339),
		string(costJSON),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert production order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

type storedOrder struct {
	stock.ProductionOrder
	CostJSON string
}

func (s *server) getOrder(id string) (storedOrder, error) {
	row := s.db.QueryRow(`
		SELECT id, product_id, quantity, status, planned_date, completed_date, actual_cost, COALESCE(cost_json, '')
		FROM production_orders
		WHERE id = ?
	`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storedOrder{}, errNotFound
	}
	return order, err
}

func (s *server) listOrders() ([]storedOrder, error) {
	rows, err := s.db.Query(`
		SELECT id, product_id, quantity, status, planned_date, completed_date, actual_cost, COALESCE(cost_json, '')
		FROM production_orders
		ORDER BY datetime(created_at) DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query production orders: %w", err)
	}
	defer rows.Close()

	orders := make([]storedOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate production orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (storedOrder, error) {
	var order storedOrder
	var quantity, status, plannedDate string
	var completedDate, actualCost sql.NullString
	if err := row.Scan(
		&order.ID,
		&order.ProductID,
		&quantity,
		&status,
		&plannedDate,
		&completedDate,
		&actualCost,
		&order.CostJSON,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storedOrder{}, err
		}
		return storedOrder{}, fmt.Errorf("scan production order: %w", err)
	}

	var err error
	if order.Quantity, err = parseStoredDecimal(quantity, "quantity"); err != nil {
		return storedOrder{}, err
	}
	order.Status = stock.OrderStatus(status)
	if order.PlannedDate, err = parseStoredTime(plannedDate, "planned_date"); err != nil {
		return storedOrder{}, err
	}
	if completedDate.Valid {
		completed, err := parseStoredTime(completedDate.String, "completed_date")
		if err != nil {
			return storedOrder{}, err
		}
		order.CompletedDate = &completed
	}
	if actualCost.Valid {
		cost, err := parseStoredDecimal(actualCost.String, "actual_cost")
		if err != nil {
			return storedOrder{}, err
		}
		order.ActualCost = &cost
	}
	return order, nil
}

func parseStoredTime(raw, column string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %s value %q", column, raw)
}

func (s *server) updateOrderStatus(id string, from []stock.OrderStatus, to stock.OrderStatus, completedDate *time.Time, actualCost *decimal.Decimal) error {
	order, err := s.getOrder(id)
	if err != nil {
		return err
	}

	allowed := false
	for _, status := range from {
		if order.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s", errInvalidTransition, order.Status)
	}

	var completed any
	if completedDate != nil {
		completed = completedDate.UTC().Format(time.RFC3339)
	}
	var cost any
	if actualCost != nil {
		cost = actualCost.String()
	}

	if _, err := s.db.Exec(`
		UPDATE production_orders
		SET status = ?, completed_date = COALESCE(?, completed_date), actual_cost = COALESCE(?, actual_cost), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(to), completed, cost, id); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

var errInvalidTransition = errors.New("invalid status transition")
