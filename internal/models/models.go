package models

import "time"

// Customer holds the risk attributes the eligibility engine evaluates.
// The fraud flag is sticky: it is set externally and never cleared here.
type Customer struct {
	ID            int64         `json:"id"`
	Email         string        `json:"email"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Phone         string        `json:"phone,omitempty"`
	LoyaltyTier   LoyaltyTier   `json:"loyalty_tier"`
	AccountStatus AccountStatus `json:"account_status"`
	FraudFlag     bool          `json:"fraud_flag"`
	ReturnCount30 int           `json:"return_count_30d"` // rolling count, maintained externally
}

// OrderItem is a single line on an order. Price and quantity feed the
// refund calculation only; eligibility looks at the flags and category.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductName  string          `json:"product_name"`
	Category     ProductCategory `json:"product_category,omitempty"`
	SKU          string          `json:"sku,omitempty"`
	Quantity     int             `json:"quantity"`
	PriceCents   int64           `json:"price_cents"`
	IsFinalSale  bool            `json:"is_final_sale"`
	IsReturnable bool            `json:"is_returnable"`
}

// Order is an immutable snapshot of an order with its items and owning
// customer, assembled in a single repository read before evaluation.
type Order struct {
	ID              int64       `json:"id"`
	OrderNumber     string      `json:"order_number"`
	CustomerID      int64       `json:"customer_id"`
	OrderDate       time.Time   `json:"order_date"`
	TotalCents      int64       `json:"total_cents"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	Items           []OrderItem `json:"items"`
	Customer        Customer    `json:"customer"`
}

// ReturnPolicy is an active return policy from the policy store.
// Read-only to the engine.
type ReturnPolicy struct {
	ID                int64          `json:"id"`
	PolicyName        string         `json:"policy_name"`
	Category          PolicyCategory `json:"category"`
	ReturnWindowDays  int            `json:"return_window_days"`
	RequiresPackaging bool           `json:"requires_original_packaging"`
	RestockingFeePct  float64        `json:"restocking_fee_percent"`
	Conditions        string         `json:"conditions,omitempty"`
	IsActive          bool           `json:"is_active"`
}

// EligibilityDecision is the engine's output. It is created fresh for every
// evaluation and never persisted or cached by the engine; re-evaluating the
// same order later can legitimately yield a different decision.
type EligibilityDecision struct {
	Eligible             bool       `json:"eligible"`
	ReasonCode           ReasonCode `json:"reason_code"`
	PolicyApplied        string     `json:"policy_applied"`
	Message              string     `json:"message"`
	DaysSinceOrder       *int       `json:"days_since_order,omitempty"`
	RequiresManualReview bool       `json:"requires_manual_review"`
}

// RMA is a return merchandise authorization record.
type RMA struct {
	ID               int64      `json:"id"`
	RMANumber        string     `json:"rma_number"`
	OrderID          int64      `json:"order_id"`
	CustomerID       int64      `json:"customer_id"`
	ReturnReason     string     `json:"return_reason"`
	ReasonCode       ReasonCode `json:"reason_code"`
	Status           RMAStatus  `json:"status"`
	ItemIDs          []int64    `json:"item_ids"`
	RefundCents      int64      `json:"refund_cents"`
	LabelURL         string     `json:"label_url,omitempty"`
	TrackingNumber   string     `json:"tracking_number,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Escalated        bool       `json:"escalated"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
}

// ConversationLog is one message in a support conversation. The escalation
// summary is built from these entries.
type ConversationLog struct {
	ID          int64       `json:"id"`
	SessionID   string      `json:"session_id"`
	CustomerID  int64       `json:"customer_id,omitempty"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	Metadata    string      `json:"metadata,omitempty"` // JSON blob
	CreatedAt   time.Time   `json:"created_at"`
}

// CheckEligibilityRequest is the request body for POST /returns/eligibility.
type CheckEligibilityRequest struct {
	OrderID      string  `json:"order_id"`
	ItemIDs      []int64 `json:"item_ids"`
	ReturnReason string  `json:"return_reason"`
}

// OrderDetailsResponse is returned by the order lookup endpoints.
type OrderDetailsResponse struct {
	Order  *Order  `json:"order,omitempty"`
	Orders []Order `json:"orders,omitempty"` // multiple matches when searching by email
}

// CreateRMARequest is the request body for POST /rmas.
type CreateRMARequest struct {
	OrderID      string  `json:"order_id"`
	ItemIDs      []int64 `json:"item_ids"`
	ReturnReason string  `json:"return_reason"`
}

// CreateRMAResponse is the response for a created RMA.
type CreateRMAResponse struct {
	RMANumber   string              `json:"rma_number"`
	RMAID       int64               `json:"rma_id"`
	RefundCents int64               `json:"refund_cents"`
	Decision    EligibilityDecision `json:"decision"`
}

// GenerateLabelResponse is the response for POST /rmas/{rma_number}/label.
type GenerateLabelResponse struct {
	LabelURL       string `json:"label_url"`
	TrackingNumber string `json:"tracking_number"`
}

// SendEmailRequest is the request body for POST /emails.
type SendEmailRequest struct {
	CustomerEmail string            `json:"customer_email"`
	TemplateName  string            `json:"template_name"`
	Context       map[string]string `json:"context"`
}

// SendEmailResponse is the response for a rendered and dispatched email.
type SendEmailResponse struct {
	MessageID string `json:"message_id"`
	Preview   string `json:"preview"`
}

// EscalateRequest is the request body for POST /escalations.
type EscalateRequest struct {
	SessionID string             `json:"session_id"`
	Reason    string             `json:"reason"`
	Priority  EscalationPriority `json:"priority"`
}

// EscalateResponse is the response for a created escalation ticket.
type EscalateResponse struct {
	TicketID string `json:"ticket_id"`
	Summary  string `json:"summary"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
