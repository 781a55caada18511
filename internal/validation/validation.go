package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"return-eligibility-api/internal/models"
)

var (
	orderNumberRegex = regexp.MustCompile(`^[0-9A-Za-z-]{1,50}$`)
	rmaNumberRegex   = regexp.MustCompile(`^RMA-[0-9]+-[A-Z]{4}$`)
	emailRegex       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	maxItemIDs       = 100
	maxReasonLength  = 2000
	maxSessionLength = 100
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateOrderNumber checks an order number's shape before it reaches the
// store. Unknown-but-well-formed numbers are the engine's concern, not ours.
func ValidateOrderNumber(orderNumber string) error {
	if orderNumber == "" {
		return &ValidationError{Field: "order_id", Message: "is required"}
	}
	if !orderNumberRegex.MatchString(orderNumber) {
		return &ValidationError{Field: "order_id", Message: "must be 1-50 alphanumeric characters"}
	}
	return nil
}

// ValidateRMANumber checks the RMA-<unix>-<SUFFIX> shape.
func ValidateRMANumber(rmaNumber string) error {
	if rmaNumber == "" {
		return &ValidationError{Field: "rma_number", Message: "is required"}
	}
	if !rmaNumberRegex.MatchString(rmaNumber) {
		return &ValidationError{Field: "rma_number", Message: "must match RMA-<timestamp>-<suffix>"}
	}
	return nil
}

// ValidateEmail checks a customer email address.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

// ValidateCheckEligibility checks the shape of an eligibility request.
// Whether the IDs belong to the order is decided inside the engine.
func ValidateCheckEligibility(req models.CheckEligibilityRequest) error {
	if err := ValidateOrderNumber(req.OrderID); err != nil {
		return err
	}

	if len(req.ItemIDs) == 0 {
		return &ValidationError{Field: "item_ids", Message: "at least one item id is required"}
	}
	if len(req.ItemIDs) > maxItemIDs {
		return &ValidationError{Field: "item_ids", Message: fmt.Sprintf("cannot contain more than %d ids", maxItemIDs)}
	}
	for i, id := range req.ItemIDs {
		if id <= 0 {
			return &ValidationError{Field: fmt.Sprintf("item_ids[%d]", i), Message: "must be positive"}
		}
	}

	if req.ReturnReason == "" {
		return &ValidationError{Field: "return_reason", Message: "is required"}
	}
	if len(req.ReturnReason) > maxReasonLength {
		return &ValidationError{Field: "return_reason", Message: fmt.Sprintf("cannot exceed %d characters", maxReasonLength)}
	}

	return nil
}

// ValidateSendEmail checks an email dispatch request.
func ValidateSendEmail(req models.SendEmailRequest) error {
	if err := ValidateEmail(req.CustomerEmail); err != nil {
		return &ValidationError{Field: "customer_email", Message: "must be a valid email address"}
	}
	if req.TemplateName == "" {
		return &ValidationError{Field: "template_name", Message: "is required"}
	}
	return nil
}

// ValidateEscalate checks an escalation request. An empty priority defaults
// to MEDIUM downstream; a present-but-unknown one is rejected here.
func ValidateEscalate(req models.EscalateRequest) error {
	if req.SessionID == "" {
		return &ValidationError{Field: "session_id", Message: "is required"}
	}
	if len(req.SessionID) > maxSessionLength {
		return &ValidationError{Field: "session_id", Message: fmt.Sprintf("cannot exceed %d characters", maxSessionLength)}
	}
	if req.Reason == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: "must be one of LOW, MEDIUM, HIGH, URGENT"}
	}
	return nil
}
