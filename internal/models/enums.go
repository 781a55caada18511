package models

// LoyaltyTier is a customer loyalty tier level.
type LoyaltyTier string

const (
	TierStandard LoyaltyTier = "Standard"
	TierSilver   LoyaltyTier = "Silver"
	TierGold     LoyaltyTier = "Gold"
	TierPlatinum LoyaltyTier = "Platinum"
)

// Valid reports whether the tier is one of the known values.
func (t LoyaltyTier) Valid() bool {
	switch t {
	case TierStandard, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// AccountStatus is a customer account status.
type AccountStatus string

const (
	AccountActive    AccountStatus = "Active"
	AccountSuspended AccountStatus = "Suspended"
	AccountClosed    AccountStatus = "Closed"
)

// OrderStatus is an order processing status.
type OrderStatus string

const (
	OrderPending         OrderStatus = "Pending"
	OrderShipped         OrderStatus = "Shipped"
	OrderDelivered       OrderStatus = "Delivered"
	OrderReturnInitiated OrderStatus = "Return_Initiated"
	OrderReturned        OrderStatus = "Returned"
)

// ProductCategory is the category of an order item. An item may have no
// category at all, represented by the empty string.
type ProductCategory string

const (
	CategoryClothing       ProductCategory = "Clothing"
	CategoryElectronics    ProductCategory = "Electronics"
	CategoryHomeGoods      ProductCategory = "Home Goods"
	CategorySpecialEdition ProductCategory = "Special Edition"
	CategoryFootwear       ProductCategory = "Footwear"
	CategoryAccessories    ProductCategory = "Accessories"
)

// Valid reports whether the category is one of the known values.
// The empty string is allowed (unset category).
func (c ProductCategory) Valid() bool {
	switch c {
	case "", CategoryClothing, CategoryElectronics, CategoryHomeGoods,
		CategorySpecialEdition, CategoryFootwear, CategoryAccessories:
		return true
	}
	return false
}

// PolicyCategory is the scope label of a return policy. It overlaps in name
// with ProductCategory but is a distinct set.
type PolicyCategory string

const (
	PolicyGeneral     PolicyCategory = "General"
	PolicyElectronics PolicyCategory = "Electronics"
	PolicyClothing    PolicyCategory = "Clothing"
	PolicyFinalSale   PolicyCategory = "Final Sale"
	PolicyVIPExtended PolicyCategory = "VIP Extended"
)

// Valid reports whether the policy category is one of the known values.
func (c PolicyCategory) Valid() bool {
	switch c {
	case PolicyGeneral, PolicyElectronics, PolicyClothing,
		PolicyFinalSale, PolicyVIPExtended:
		return true
	}
	return false
}

// ReasonCode is the closed set of eligibility decision codes. Callers must
// branch on the code, never on the decision message.
type ReasonCode string

const (
	// ReasonApproved means the return is approved.
	ReasonApproved ReasonCode = "APPROVED"
	// ReasonTimeExpired means the return window has passed.
	ReasonTimeExpired ReasonCode = "TIME_EXP"
	// ReasonItemExcluded means at least one item is final sale or otherwise
	// not returnable.
	ReasonItemExcluded ReasonCode = "ITEM_EXCL"
	// ReasonDataError means missing or invalid data: unknown order, empty
	// item set, or no policy could be resolved.
	ReasonDataError ReasonCode = "DATA_ERR"
	// ReasonRiskManual means a fraud flag or high return count forces a
	// human review.
	ReasonRiskManual ReasonCode = "RISK_MANUAL"
	// ReasonDamagedManual means damaged or defective items need inspection
	// by a specialist.
	ReasonDamagedManual ReasonCode = "DAMAGED_MANUAL"
)

// RMAStatus is the processing status of a return merchandise authorization.
type RMAStatus string

const (
	RMAInitiated RMAStatus = "Initiated"
	RMALabelSent RMAStatus = "Label_Sent"
	RMAInTransit RMAStatus = "In_Transit"
	RMAReceived  RMAStatus = "Received"
	RMAInspected RMAStatus = "Inspected"
	RMAApproved  RMAStatus = "Approved"
	RMARejected  RMAStatus = "Rejected"
	RMAProcessed RMAStatus = "Processed"
	RMARefunded  RMAStatus = "Refunded"
)

// EscalationPriority is the priority of a human escalation ticket.
type EscalationPriority string

const (
	PriorityLow    EscalationPriority = "LOW"
	PriorityMedium EscalationPriority = "MEDIUM"
	PriorityHigh   EscalationPriority = "HIGH"
	PriorityUrgent EscalationPriority = "URGENT"
)

// Valid reports whether the priority is one of the known values.
func (p EscalationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// MessageType is the kind of a conversation log entry.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageTool      MessageType = "tool"
	MessageSystem    MessageType = "system"
)
