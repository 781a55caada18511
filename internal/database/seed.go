package database

import (
	"fmt"
	"time"

	"return-eligibility-api/internal/models"
)

// InsertCustomer adds a customer and returns its id.
func (db *DB) InsertCustomer(c models.Customer) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO customers (email, first_name, last_name, phone, loyalty_tier,
		                        account_status, fraud_flag, return_count_30d)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Email, c.FirstName, c.LastName, c.Phone, string(c.LoyaltyTier),
		string(c.AccountStatus), c.FraudFlag, c.ReturnCount30)
	if err != nil {
		return 0, fmt.Errorf("failed to insert customer: %w", err)
	}
	return res.LastInsertId()
}

// InsertOrder adds an order and its items in one transaction, computing the
// order total from the items. Returns the order id.
func (db *DB) InsertOrder(order models.Order) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, item := range order.Items {
		total += item.PriceCents * int64(item.Quantity)
	}

	status := order.Status
	if status == "" {
		status = models.OrderDelivered
	}

	res, err := tx.Exec(
		`INSERT INTO orders (order_number, customer_id, order_date, total_cents, status, shipping_address)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		order.OrderNumber, order.CustomerID, order.OrderDate.Format(time.RFC3339),
		total, string(status), order.ShippingAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read order id: %w", err)
	}

	for _, item := range order.Items {
		if _, err := tx.Exec(
			`INSERT INTO order_items (order_id, product_name, product_category, sku,
			                          quantity, price_cents, is_final_sale, is_returnable)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			orderID, item.ProductName, string(item.Category), item.SKU,
			item.Quantity, item.PriceCents, item.IsFinalSale, item.IsReturnable); err != nil {
			return 0, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit order: %w", err)
	}

	return orderID, nil
}

// InsertPolicy adds a return policy and returns its id.
func (db *DB) InsertPolicy(p models.ReturnPolicy) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO return_policies (policy_name, category, return_window_days,
		                              requires_original_packaging, restocking_fee_percent,
		                              conditions, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PolicyName, string(p.Category), p.ReturnWindowDays,
		p.RequiresPackaging, p.RestockingFeePct, p.Conditions, p.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to insert policy: %w", err)
	}
	return res.LastInsertId()
}

// Seed loads development fixtures: the five standard return policies and a
// handful of customers and orders covering each decision path, including the
// well-known scenario orders 77893, 45110 and 10552. Safe to call once on an
// empty database only.
func (db *DB) Seed(now time.Time) error {
	policies := []models.ReturnPolicy{
		{PolicyName: "General Return Policy", Category: models.PolicyGeneral, ReturnWindowDays: 30,
			Conditions: "Standard 30-day return policy for most items", IsActive: true},
		{PolicyName: "Electronics Return Policy", Category: models.PolicyElectronics, ReturnWindowDays: 90,
			RequiresPackaging: true, RestockingFeePct: 15.0,
			Conditions: "90-day return window with 15% restocking fee. Original packaging required.", IsActive: true},
		{PolicyName: "Clothing Return Policy", Category: models.PolicyClothing, ReturnWindowDays: 30,
			Conditions: "30-day return policy for clothing. Tags must be attached.", IsActive: true},
		{PolicyName: "Final Sale - No Returns", Category: models.PolicyFinalSale, ReturnWindowDays: 0,
			Conditions: "Final sale items are non-returnable and non-refundable", IsActive: true},
		{PolicyName: "VIP Extended Return Policy", Category: models.PolicyVIPExtended, ReturnWindowDays: 120,
			Conditions: "Extended 120-day return window for Gold and Platinum tier customers", IsActive: true},
	}
	for _, p := range policies {
		if _, err := db.InsertPolicy(p); err != nil {
			return err
		}
	}

	customers := []models.Customer{
		{Email: "john.doe@example.com", FirstName: "John", LastName: "Doe", Phone: "555-0101",
			LoyaltyTier: models.TierStandard, AccountStatus: models.AccountActive},
		{Email: "jane.smith@example.com", FirstName: "Jane", LastName: "Smith", Phone: "555-0102",
			LoyaltyTier: models.TierStandard, AccountStatus: models.AccountActive, ReturnCount30: 1},
		{Email: "bob.johnson@example.com", FirstName: "Bob", LastName: "Johnson", Phone: "555-0103",
			LoyaltyTier: models.TierStandard, AccountStatus: models.AccountActive},
		{Email: "isabel.anderson@example.com", FirstName: "Isabel", LastName: "Anderson", Phone: "555-0301",
			LoyaltyTier: models.TierGold, AccountStatus: models.AccountActive},
		{Email: "liam.white@example.com", FirstName: "Liam", LastName: "White", Phone: "555-0401",
			LoyaltyTier: models.TierPlatinum, AccountStatus: models.AccountActive},
		{Email: "nathan.fraud@example.com", FirstName: "Nathan", LastName: "Fraud", Phone: "555-0501",
			LoyaltyTier: models.TierStandard, AccountStatus: models.AccountActive,
			FraudFlag: true, ReturnCount30: 5},
		{Email: "quinn.frequent@example.com", FirstName: "Quinn", LastName: "Frequent", Phone: "555-0602",
			LoyaltyTier: models.TierSilver, AccountStatus: models.AccountActive, ReturnCount30: 3},
	}

	ids := make(map[string]int64, len(customers))
	for _, c := range customers {
		id, err := db.InsertCustomer(c)
		if err != nil {
			return err
		}
		ids[c.Email] = id
	}

	returnable := func(name string, category models.ProductCategory, sku string, priceCents int64) models.OrderItem {
		return models.OrderItem{ProductName: name, Category: category, SKU: sku,
			Quantity: 1, PriceCents: priceCents, IsReturnable: true}
	}

	orders := []models.Order{
		// Hiking boots, 15 days old: eligible under the General policy.
		{OrderNumber: "77893", CustomerID: ids["john.doe@example.com"],
			OrderDate: now.AddDate(0, 0, -15),
			Items:     []models.OrderItem{returnable("Hiking Boots", models.CategoryFootwear, "FOO-002", 12999)}},
		// Jacket, 185 days old: return window expired.
		{OrderNumber: "45110", CustomerID: ids["jane.smith@example.com"],
			OrderDate: now.AddDate(0, 0, -185),
			Items:     []models.OrderItem{returnable("Black Jacket", models.CategoryClothing, "CLO-003", 8999)}},
		// Tablet, 10 days old: the damaged-electronics scenario.
		{OrderNumber: "10552", CustomerID: ids["bob.johnson@example.com"],
			OrderDate: now.AddDate(0, 0, -10),
			Items:     []models.OrderItem{returnable("Tablet", models.CategoryElectronics, "ELE-004", 49999)}},
		// Final-sale special edition item.
		{OrderNumber: "10553", CustomerID: ids["john.doe@example.com"],
			OrderDate: now.AddDate(0, 0, -5),
			Items: []models.OrderItem{{ProductName: "Limited Edition Vinyl", Category: models.CategorySpecialEdition,
				SKU: "SPE-001", Quantity: 1, PriceCents: 14999, IsFinalSale: true}}},
		// Gold-tier order older than the clothing window but inside VIP Extended.
		{OrderNumber: "10554", CustomerID: ids["isabel.anderson@example.com"],
			OrderDate: now.AddDate(0, 0, -100),
			Items:     []models.OrderItem{returnable("Blue Jeans", models.CategoryClothing, "CLO-002", 5999)}},
		// Fraud-flagged customer's order.
		{OrderNumber: "10555", CustomerID: ids["nathan.fraud@example.com"],
			OrderDate: now.AddDate(0, 0, -3),
			Items:     []models.OrderItem{returnable("Smart Watch", models.CategoryElectronics, "ELE-001", 29999)}},
	}
	for _, o := range orders {
		if _, err := db.InsertOrder(o); err != nil {
			return err
		}
	}

	return nil
}
