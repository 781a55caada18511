package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"return-eligibility-api/internal/models"
)

// ErrNotFound is returned when a lookup resolves to nothing.
var ErrNotFound = errors.New("database: not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			loyalty_tier TEXT NOT NULL DEFAULT 'Standard',
			account_status TEXT NOT NULL DEFAULT 'Active',
			fraud_flag INTEGER NOT NULL DEFAULT 0,
			return_count_30d INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_number TEXT NOT NULL UNIQUE,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			order_date TEXT NOT NULL,
			total_cents INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'Delivered',
			shipping_address TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			product_name TEXT NOT NULL,
			product_category TEXT,
			sku TEXT,
			quantity INTEGER NOT NULL DEFAULT 1,
			price_cents INTEGER NOT NULL,
			is_final_sale INTEGER NOT NULL DEFAULT 0,
			is_returnable INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS return_policies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			policy_name TEXT NOT NULL,
			category TEXT,
			return_window_days INTEGER NOT NULL,
			requires_original_packaging INTEGER NOT NULL DEFAULT 0,
			restocking_fee_percent REAL NOT NULL DEFAULT 0,
			conditions TEXT,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS rmas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rma_number TEXT NOT NULL UNIQUE,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			return_reason TEXT NOT NULL,
			reason_code TEXT,
			status TEXT NOT NULL DEFAULT 'Initiated',
			item_ids TEXT,
			refund_cents INTEGER,
			label_url TEXT,
			tracking_number TEXT,
			escalated INTEGER NOT NULL DEFAULT 0,
			escalation_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			customer_id INTEGER REFERENCES customers(id),
			message_type TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(order_number)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rmas_rma_number ON rmas(rma_number)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_logs_session ON conversation_logs(session_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// FindOrderByNumber loads an order together with its items and owning
// customer in one consistent read, so the eligibility engine works on an
// immutable snapshot rather than live rows.
func (db *DB) FindOrderByNumber(orderNumber string) (models.Order, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRow(
		`SELECT id, order_number, customer_id, order_date, total_cents, status, COALESCE(shipping_address, '')
		 FROM orders WHERE order_number = ?`, orderNumber))
	if err != nil {
		return models.Order{}, err
	}

	if order.Customer, err = scanCustomer(tx.QueryRow(
		customerColumns+` FROM customers WHERE id = ?`, order.CustomerID)); err != nil {
		return models.Order{}, err
	}

	if order.Items, err = queryItems(tx, order.ID); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit read: %w", err)
	}

	return order, nil
}

// FindOrdersByEmail returns the customer's most recent orders, newest first.
func (db *DB) FindOrdersByEmail(email string, limit int) ([]models.Order, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	customer, err := scanCustomer(tx.QueryRow(
		customerColumns+` FROM customers WHERE email = ?`, email))
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		`SELECT id, order_number, customer_id, order_date, total_cents, status, COALESCE(shipping_address, '')
		 FROM orders WHERE customer_id = ? ORDER BY order_date DESC LIMIT ?`, customer.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Customer = customer
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range orders {
		if orders[i].Items, err = queryItems(tx, orders[i].ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}

	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return orders, nil
}

// ListActivePolicies returns the active return policies ordered by id, so
// the engine's lowest-ID tie-break is stable across reads.
func (db *DB) ListActivePolicies() ([]models.ReturnPolicy, error) {
	rows, err := db.conn.Query(
		`SELECT id, policy_name, COALESCE(category, ''), return_window_days,
		        requires_original_packaging, restocking_fee_percent, COALESCE(conditions, ''), is_active
		 FROM return_policies WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []models.ReturnPolicy
	for rows.Next() {
		var p models.ReturnPolicy
		if err := rows.Scan(&p.ID, &p.PolicyName, &p.Category, &p.ReturnWindowDays,
			&p.RequiresPackaging, &p.RestockingFeePct, &p.Conditions, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	return policies, nil
}

// CreateRMA inserts the RMA and flips the order status to Return_Initiated
// in one transaction. The unique rma_number constraint is the idempotency
// guard for double submissions.
func (db *DB) CreateRMA(rma models.RMA) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	itemIDs, err := json.Marshal(rma.ItemIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize item ids: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO rmas (rma_number, order_id, customer_id, return_reason, reason_code,
		                   status, item_ids, refund_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rma.RMANumber, rma.OrderID, rma.CustomerID, rma.ReturnReason, string(rma.ReasonCode),
		string(rma.Status), string(itemIDs), rma.RefundCents,
		rma.CreatedAt.Format(time.RFC3339), rma.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to insert rma: %w", err)
	}

	if _, err := tx.Exec(`UPDATE orders SET status = ? WHERE id = ?`,
		string(models.OrderReturnInitiated), rma.OrderID); err != nil {
		return 0, fmt.Errorf("failed to update order status: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read rma id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rma: %w", err)
	}

	return id, nil
}

// GetRMAByNumber returns a single RMA by its public number.
func (db *DB) GetRMAByNumber(rmaNumber string) (models.RMA, error) {
	row := db.conn.QueryRow(
		`SELECT id, rma_number, order_id, customer_id, return_reason, COALESCE(reason_code, ''),
		        status, COALESCE(item_ids, '[]'), COALESCE(refund_cents, 0),
		        COALESCE(label_url, ''), COALESCE(tracking_number, ''),
		        escalated, COALESCE(escalation_reason, ''), created_at, updated_at
		 FROM rmas WHERE rma_number = ?`, rmaNumber)

	var rma models.RMA
	var itemIDs, createdAt, updatedAt string
	err := row.Scan(&rma.ID, &rma.RMANumber, &rma.OrderID, &rma.CustomerID, &rma.ReturnReason,
		&rma.ReasonCode, &rma.Status, &itemIDs, &rma.RefundCents,
		&rma.LabelURL, &rma.TrackingNumber, &rma.Escalated, &rma.EscalationReason,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return models.RMA{}, ErrNotFound
	}
	if err != nil {
		return models.RMA{}, fmt.Errorf("failed to scan rma: %w", err)
	}

	if err := json.Unmarshal([]byte(itemIDs), &rma.ItemIDs); err != nil {
		return models.RMA{}, fmt.Errorf("failed to parse item ids: %w", err)
	}
	if rma.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return models.RMA{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rma.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return models.RMA{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return rma, nil
}

// SetRMALabel stores the generated label and moves the RMA to Label_Sent.
func (db *DB) SetRMALabel(rmaNumber, labelURL, trackingNumber string) error {
	res, err := db.conn.Exec(
		`UPDATE rmas SET label_url = ?, tracking_number = ?, status = ?, updated_at = ?
		 WHERE rma_number = ?`,
		labelURL, trackingNumber, string(models.RMALabelSent),
		time.Now().UTC().Format(time.RFC3339), rmaNumber)
	if err != nil {
		return fmt.Errorf("failed to update rma label: %w", err)
	}
	return requireRowAffected(res)
}

// MarkRMAEscalated flags an RMA as escalated with the given reason.
func (db *DB) MarkRMAEscalated(rmaNumber, reason string) error {
	res, err := db.conn.Exec(
		`UPDATE rmas SET escalated = 1, escalation_reason = ?, updated_at = ?
		 WHERE rma_number = ?`,
		reason, time.Now().UTC().Format(time.RFC3339), rmaNumber)
	if err != nil {
		return fmt.Errorf("failed to mark rma escalated: %w", err)
	}
	return requireRowAffected(res)
}

// InsertConversationLog appends one message to a session's log.
func (db *DB) InsertConversationLog(logEntry models.ConversationLog) error {
	var customerID interface{}
	if logEntry.CustomerID != 0 {
		customerID = logEntry.CustomerID
	}

	createdAt := logEntry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.conn.Exec(
		`INSERT INTO conversation_logs (session_id, customer_id, message_type, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		logEntry.SessionID, customerID, string(logEntry.MessageType), logEntry.Content,
		logEntry.Metadata, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert conversation log: %w", err)
	}
	return nil
}

// ListConversationLogs returns a session's messages oldest first.
func (db *DB) ListConversationLogs(sessionID string) ([]models.ConversationLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_id, COALESCE(customer_id, 0), message_type, content, COALESCE(metadata, ''), created_at
		 FROM conversation_logs WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ConversationLog
	for rows.Next() {
		var l models.ConversationLog
		var createdAt string
		if err := rows.Scan(&l.ID, &l.SessionID, &l.CustomerID, &l.MessageType,
			&l.Content, &l.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation log: %w", err)
		}
		if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation logs: %w", err)
	}

	return logs, nil
}

const customerColumns = `SELECT id, email, first_name, last_name, COALESCE(phone, ''),
	loyalty_tier, account_status, fraud_flag, return_count_30d`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone,
		&c.LoyaltyTier, &c.AccountStatus, &c.FraudFlag, &c.ReturnCount30)
	if err == sql.ErrNoRows {
		return models.Customer{}, ErrNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to scan customer: %w", err)
	}
	return c, nil
}

func scanOrder(row rowScanner) (models.Order, error) {
	var o models.Order
	var orderDate string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &orderDate,
		&o.TotalCents, &o.Status, &o.ShippingAddress)
	if err == sql.ErrNoRows {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to scan order: %w", err)
	}
	if o.OrderDate, err = time.Parse(time.RFC3339, orderDate); err != nil {
		return models.Order{}, fmt.Errorf("failed to parse order_date: %w", err)
	}
	return o, nil
}

func queryItems(tx *sql.Tx, orderID int64) ([]models.OrderItem, error) {
	rows, err := tx.Query(
		`SELECT id, order_id, product_name, COALESCE(product_category, ''), COALESCE(sku, ''),
		        quantity, price_cents, is_final_sale, is_returnable
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Category,
			&item.SKU, &item.Quantity, &item.PriceCents, &item.IsFinalSale, &item.IsReturnable); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
