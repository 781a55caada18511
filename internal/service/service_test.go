package service

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"return-eligibility-api/internal/cache"
	"return-eligibility-api/internal/database"
	"return-eligibility-api/internal/features"
	"return-eligibility-api/internal/models"
)

var testNow = time.Date(2025, 11, 14, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_" + time.Now().Format("20060102150405.000000000") + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func setupTestService(t *testing.T) (*Service, *database.DB, func()) {
	db, cleanup := setupTestDB(t)

	if err := db.Seed(testNow); err != nil {
		cleanup()
		t.Fatalf("Failed to seed test database: %v", err)
	}

	svc := NewServiceWithOptions(db, Options{
		Now: func() time.Time { return testNow },
	})

	return svc, db, cleanup
}

func TestCheckEligibility_Approved(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Order 77893: hiking boots, 15 days old.
	decision := svc.CheckEligibility(context.Background(), "77893", []int64{1}, "wrong size")

	if !decision.Eligible {
		t.Fatalf("Expected eligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonApproved {
		t.Errorf("Expected reason code APPROVED, got %s", decision.ReasonCode)
	}
	if decision.PolicyApplied != "General Return Policy" {
		t.Errorf("Expected General Return Policy, got %s", decision.PolicyApplied)
	}
	if decision.DaysSinceOrder == nil || *decision.DaysSinceOrder != 15 {
		t.Errorf("Expected 15 days since order, got %v", decision.DaysSinceOrder)
	}
}

func TestCheckEligibility_WindowExpired(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Order 45110: jacket, 185 days old.
	decision := svc.CheckEligibility(context.Background(), "45110", []int64{2}, "changed my mind")

	if decision.Eligible {
		t.Fatalf("Expected ineligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonTimeExpired {
		t.Errorf("Expected reason code TIME_EXP, got %s", decision.ReasonCode)
	}
}

func TestCheckEligibility_DamagedReason(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Order 10552: tablet, 10 days old, reason mentions damage.
	decision := svc.CheckEligibility(context.Background(), "10552", []int64{3}, "screen arrived damaged")

	if decision.Eligible {
		t.Fatalf("Expected ineligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonDamagedManual {
		t.Errorf("Expected reason code DAMAGED_MANUAL, got %s", decision.ReasonCode)
	}
	if !decision.RequiresManualReview {
		t.Error("Expected manual review to be required")
	}
}

func TestCheckEligibility_FraudFlaggedCustomer(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Order 10555 belongs to a fraud-flagged customer.
	decision := svc.CheckEligibility(context.Background(), "10555", []int64{6}, "no longer needed")

	if decision.Eligible {
		t.Fatalf("Expected ineligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonRiskManual {
		t.Errorf("Expected reason code RISK_MANUAL, got %s", decision.ReasonCode)
	}
}

func TestCheckEligibility_OrderNotFound(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Unknown orders produce a DATA_ERR decision, never an error.
	decision := svc.CheckEligibility(context.Background(), "99999", []int64{1}, "wrong size")

	if decision.Eligible {
		t.Fatalf("Expected ineligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonDataError {
		t.Errorf("Expected reason code DATA_ERR, got %s", decision.ReasonCode)
	}
	if decision.DaysSinceOrder != nil {
		t.Errorf("Expected no days_since_order for unknown order, got %v", *decision.DaysSinceOrder)
	}
}

func TestCheckEligibility_VIPExtendedWindow(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	// Order 10554: Gold-tier customer, clothing order 100 days old. Outside
	// the 30-day clothing window but inside VIP Extended's 120 days.
	decision := svc.CheckEligibility(context.Background(), "10554", []int64{5}, "does not fit")

	if !decision.Eligible {
		t.Fatalf("Expected eligible decision, got %+v", decision)
	}
	if decision.PolicyApplied != "VIP Extended Return Policy" {
		t.Errorf("Expected VIP Extended Return Policy, got %s", decision.PolicyApplied)
	}
}

func TestCreateRMA_Approved(t *testing.T) {
	svc, db, cleanup := setupTestService(t)
	defer cleanup()

	resp, err := svc.CreateRMA(context.Background(), models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})
	if err != nil {
		t.Fatalf("Failed to create RMA: %v", err)
	}

	if matched, _ := regexp.MatchString(`^RMA-[0-9]+-[A-Z]{4}$`, resp.RMANumber); !matched {
		t.Errorf("Unexpected RMA number format: %s", resp.RMANumber)
	}
	if resp.RefundCents != 12999 {
		t.Errorf("Expected refund of 12999 cents, got %d", resp.RefundCents)
	}
	if resp.Decision.ReasonCode != models.ReasonApproved {
		t.Errorf("Expected APPROVED decision on response, got %s", resp.Decision.ReasonCode)
	}

	// The RMA must be persisted and the order flipped to Return_Initiated.
	rma, err := db.GetRMAByNumber(resp.RMANumber)
	if err != nil {
		t.Fatalf("Failed to load created RMA: %v", err)
	}
	if rma.Status != models.RMAInitiated {
		t.Errorf("Expected RMA status Initiated, got %s", rma.Status)
	}
	if len(rma.ItemIDs) != 1 || rma.ItemIDs[0] != 1 {
		t.Errorf("Unexpected RMA item ids: %v", rma.ItemIDs)
	}

	order, err := db.FindOrderByNumber("77893")
	if err != nil {
		t.Fatalf("Failed to load order: %v", err)
	}
	if order.Status != models.OrderReturnInitiated {
		t.Errorf("Expected order status Return_Initiated, got %s", order.Status)
	}
}

func TestCreateRMA_Rejected(t *testing.T) {
	svc, db, cleanup := setupTestService(t)
	defer cleanup()

	resp, err := svc.CreateRMA(context.Background(), models.CreateRMARequest{
		OrderID:      "45110",
		ItemIDs:      []int64{2},
		ReturnReason: "changed my mind",
	})
	if err != ErrNotEligible {
		t.Fatalf("Expected ErrNotEligible, got %v", err)
	}
	if resp.Decision.ReasonCode != models.ReasonTimeExpired {
		t.Errorf("Expected TIME_EXP decision on rejection, got %s", resp.Decision.ReasonCode)
	}

	// No RMA should be created and the order must keep its status.
	order, err := db.FindOrderByNumber("45110")
	if err != nil {
		t.Fatalf("Failed to load order: %v", err)
	}
	if order.Status != models.OrderDelivered {
		t.Errorf("Expected order status unchanged, got %s", order.Status)
	}
}

func TestGenerateReturnLabel(t *testing.T) {
	svc, db, cleanup := setupTestService(t)
	defer cleanup()

	created, err := svc.CreateRMA(context.Background(), models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})
	if err != nil {
		t.Fatalf("Failed to create RMA: %v", err)
	}

	resp, err := svc.GenerateReturnLabel(context.Background(), created.RMANumber)
	if err != nil {
		t.Fatalf("Failed to generate label: %v", err)
	}

	wantURL := "https://returns.example.com/labels/" + created.RMANumber + ".pdf"
	if resp.LabelURL != wantURL {
		t.Errorf("Expected label URL %s, got %s", wantURL, resp.LabelURL)
	}
	if matched, _ := regexp.MatchString(`^(USPS|UPS|FEDEX)-[0-9]{12}$`, resp.TrackingNumber); !matched {
		t.Errorf("Unexpected tracking number format: %s", resp.TrackingNumber)
	}

	rma, err := db.GetRMAByNumber(created.RMANumber)
	if err != nil {
		t.Fatalf("Failed to load RMA: %v", err)
	}
	if rma.Status != models.RMALabelSent {
		t.Errorf("Expected RMA status Label_Sent, got %s", rma.Status)
	}
	if rma.TrackingNumber != resp.TrackingNumber {
		t.Errorf("Expected tracking number %s persisted, got %s", resp.TrackingNumber, rma.TrackingNumber)
	}
}

func TestGenerateReturnLabel_UnknownRMA(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.GenerateReturnLabel(context.Background(), "RMA-0-XXXX")
	if err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestSendEmail_RendersTemplate(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	resp, err := svc.SendEmail(context.Background(), models.SendEmailRequest{
		CustomerEmail: "john.doe@example.com",
		TemplateName:  "return_approved",
		Context: map[string]string{
			"customer_name": "John",
			"order_number":  "77893",
			"rma_number":    "RMA-1-ABCD",
			"refund_amount": "129.99",
		},
	})
	if err != nil {
		t.Fatalf("Failed to send email: %v", err)
	}

	if !strings.HasPrefix(resp.MessageID, "MSG-") {
		t.Errorf("Unexpected message id format: %s", resp.MessageID)
	}
	if !strings.Contains(resp.Preview, "John") {
		t.Errorf("Expected rendered preview to contain the customer name, got: %s", resp.Preview)
	}
}

func TestSendEmail_UnknownTemplate(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.SendEmail(context.Background(), models.SendEmailRequest{
		CustomerEmail: "john.doe@example.com",
		TemplateName:  "no_such_template",
		Context:       map[string]string{},
	})
	if err == nil {
		t.Fatal("Expected error for unknown template")
	}
}

func TestSendEmail_LogsConversation(t *testing.T) {
	svc, db, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.SendEmail(context.Background(), models.SendEmailRequest{
		CustomerEmail: "john.doe@example.com",
		TemplateName:  "label_ready",
		Context: map[string]string{
			"customer_name":   "John",
			"rma_number":      "RMA-1-ABCD",
			"tracking_number": "USPS-123456789012",
			"label_url":       "https://returns.example.com/labels/RMA-1-ABCD.pdf",
			"session_id":      "sess-42",
		},
	})
	if err != nil {
		t.Fatalf("Failed to send email: %v", err)
	}

	logs, err := db.ListConversationLogs("sess-42")
	if err != nil {
		t.Fatalf("Failed to list conversation logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 conversation log entry, got %d", len(logs))
	}
	if logs[0].MessageType != models.MessageSystem {
		t.Errorf("Expected system log entry, got %s", logs[0].MessageType)
	}
}

func TestEscalateToHuman(t *testing.T) {
	svc, db, cleanup := setupTestService(t)
	defer cleanup()

	created, err := svc.CreateRMA(context.Background(), models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})
	if err != nil {
		t.Fatalf("Failed to create RMA: %v", err)
	}

	metadata, _ := json.Marshal(map[string]string{"rma_number": created.RMANumber})
	entries := []models.ConversationLog{
		{SessionID: "sess-7", MessageType: models.MessageUser, Content: "I want to return my boots, they are the wrong size"},
		{SessionID: "sess-7", MessageType: models.MessageTool, Content: "RMA created", Metadata: string(metadata)},
	}
	for _, entry := range entries {
		if err := db.InsertConversationLog(entry); err != nil {
			t.Fatalf("Failed to insert conversation log: %v", err)
		}
	}

	resp, err := svc.EscalateToHuman(context.Background(), models.EscalateRequest{
		SessionID: "sess-7",
		Reason:    "customer disputes the refund amount",
	})
	if err != nil {
		t.Fatalf("Failed to escalate: %v", err)
	}

	if !strings.HasPrefix(resp.TicketID, "TICKET-") {
		t.Errorf("Unexpected ticket id format: %s", resp.TicketID)
	}
	if !strings.Contains(resp.Summary, "ESCALATION REASON: customer disputes the refund amount") {
		t.Errorf("Expected summary to contain the escalation reason, got: %s", resp.Summary)
	}
	if !strings.Contains(resp.Summary, "CUSTOMER REQUEST: I want to return my boots") {
		t.Errorf("Expected summary to contain the first user message, got: %s", resp.Summary)
	}

	// Any RMA referenced in the conversation is flagged.
	rma, err := db.GetRMAByNumber(created.RMANumber)
	if err != nil {
		t.Fatalf("Failed to load RMA: %v", err)
	}
	if !rma.Escalated {
		t.Error("Expected RMA to be marked escalated")
	}

	// The escalation itself is recorded in the conversation log.
	logs, err := db.ListConversationLogs("sess-7")
	if err != nil {
		t.Fatalf("Failed to list conversation logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("Expected 3 conversation log entries, got %d", len(logs))
	}
}

func TestEscalateToHuman_NoHistory(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	resp, err := svc.EscalateToHuman(context.Background(), models.EscalateRequest{
		SessionID: "sess-empty",
		Reason:    "complex policy question",
	})
	if err != nil {
		t.Fatalf("Failed to escalate: %v", err)
	}
	if !strings.Contains(resp.Summary, "No conversation history available") {
		t.Errorf("Expected empty-history summary, got: %s", resp.Summary)
	}
}

func TestGetOrderDetails_CacheInvalidatedOnRMA(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Seed(testNow); err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	flags := features.NewManager()
	flags.Register(features.FeatureCacheEnabled, true, "")

	svc := NewServiceWithOptions(db, Options{
		Flags: flags,
		Cache: cache.NewInMemoryCache(),
		Now:   func() time.Time { return testNow },
	})

	ctx := context.Background()

	// Warm the cache with the pre-RMA snapshot.
	order, err := svc.GetOrderDetails(ctx, "77893")
	if err != nil {
		t.Fatalf("Failed to load order: %v", err)
	}
	if order.Status != models.OrderDelivered {
		t.Fatalf("Expected Delivered status before RMA, got %s", order.Status)
	}

	if _, err := svc.CreateRMA(ctx, models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	}); err != nil {
		t.Fatalf("Failed to create RMA: %v", err)
	}

	// The stale cached snapshot must have been invalidated.
	order, err = svc.GetOrderDetails(ctx, "77893")
	if err != nil {
		t.Fatalf("Failed to load order after RMA: %v", err)
	}
	if order.Status != models.OrderReturnInitiated {
		t.Errorf("Expected Return_Initiated after RMA, got %s", order.Status)
	}
}

func TestGetOrdersByEmail(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()

	orders, err := svc.GetOrdersByEmail(context.Background(), "john.doe@example.com")
	if err != nil {
		t.Fatalf("Failed to list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders for john.doe, got %d", len(orders))
	}
	// Newest first.
	if !orders[0].OrderDate.After(orders[1].OrderDate) {
		t.Errorf("Expected orders sorted newest first, got %v then %v",
			orders[0].OrderDate, orders[1].OrderDate)
	}
}
