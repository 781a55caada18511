package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"return-eligibility-api/internal/database"
	"return-eligibility-api/internal/models"
	"return-eligibility-api/internal/service"

	"github.com/go-chi/chi/v5"
)

var testNow = time.Date(2025, 11, 14, 10, 0, 0, 0, time.UTC)

func setupTestHandler(t *testing.T) (*chi.Mux, func()) {
	dbPath := "./test_handler_" + time.Now().Format("20060102150405.000000000") + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Seed(testNow); err != nil {
		db.Close()
		os.Remove(dbPath)
		t.Fatalf("Failed to seed test database: %v", err)
	}

	svc := service.NewServiceWithOptions(db, service.Options{
		Now: func() time.Time { return testNow },
	})
	h := NewHandler(svc)

	r := chi.NewRouter()
	h.Routes(r)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return r, cleanup
}

func postJSON(t *testing.T, r *chi.Mux, path string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestCheckEligibility_Approved(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/returns/eligibility", models.CheckEligibilityRequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var decision models.EligibilityDecision
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !decision.Eligible {
		t.Errorf("Expected eligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonApproved {
		t.Errorf("Expected APPROVED, got %s", decision.ReasonCode)
	}
}

func TestCheckEligibility_RejectionIsStill200(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	// Expired window: a rejection is a decision, not an HTTP error.
	rr := postJSON(t, r, "/returns/eligibility", models.CheckEligibilityRequest{
		OrderID:      "45110",
		ItemIDs:      []int64{2},
		ReturnReason: "changed my mind",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var decision models.EligibilityDecision
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if decision.Eligible {
		t.Errorf("Expected ineligible decision, got %+v", decision)
	}
	if decision.ReasonCode != models.ReasonTimeExpired {
		t.Errorf("Expected TIME_EXP, got %s", decision.ReasonCode)
	}
}

func TestCheckEligibility_UnknownOrderIs200DataErr(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/returns/eligibility", models.CheckEligibilityRequest{
		OrderID:      "99999",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var decision models.EligibilityDecision
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if decision.ReasonCode != models.ReasonDataError {
		t.Errorf("Expected DATA_ERR, got %s", decision.ReasonCode)
	}
}

func TestCheckEligibility_MissingFields(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/returns/eligibility", models.CheckEligibilityRequest{
		OrderID: "77893",
		// no item ids, no reason
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckEligibility_InvalidJSON(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/returns/eligibility", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestGetOrder_Success(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/orders/77893", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.OrderDetailsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Order == nil {
		t.Fatal("Expected an order in the response")
	}
	if resp.Order.OrderNumber != "77893" {
		t.Errorf("Expected order 77893, got %s", resp.Order.OrderNumber)
	}
	if len(resp.Order.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(resp.Order.Items))
	}
	if resp.Order.Customer.Email != "john.doe@example.com" {
		t.Errorf("Expected customer email john.doe@example.com, got %s", resp.Order.Customer.Email)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/orders/99999", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestListOrders_ByEmail(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/orders/?email=john.doe%40example.com", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.OrderDetailsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.Orders) != 2 {
		t.Errorf("Expected 2 orders, got %d", len(resp.Orders))
	}
}

func TestListOrders_InvalidEmail(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/orders/?email=not-an-email", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateRMA_Success(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/rmas/", models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.CreateRMAResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.RMANumber == "" {
		t.Error("Expected an RMA number in the response")
	}
	if resp.RefundCents != 12999 {
		t.Errorf("Expected refund of 12999 cents, got %d", resp.RefundCents)
	}
}

func TestCreateRMA_NotEligibleConflict(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/rmas/", models.CreateRMARequest{
		OrderID:      "45110",
		ItemIDs:      []int64{2},
		ReturnReason: "changed my mind",
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	// The rejection body carries the decision so clients can branch on it.
	var resp models.CreateRMAResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Decision.ReasonCode != models.ReasonTimeExpired {
		t.Errorf("Expected TIME_EXP decision, got %s", resp.Decision.ReasonCode)
	}
}

func TestGenerateLabel_Flow(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/rmas/", models.CreateRMARequest{
		OrderID:      "77893",
		ItemIDs:      []int64{1},
		ReturnReason: "wrong size",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var created models.CreateRMAResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	req := httptest.NewRequest("POST", "/rmas/"+created.RMANumber+"/label", nil)
	lr := httptest.NewRecorder()
	r.ServeHTTP(lr, req)

	if lr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", lr.Code, lr.Body.String())
	}

	var resp models.GenerateLabelResponse
	if err := json.Unmarshal(lr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.LabelURL == "" || resp.TrackingNumber == "" {
		t.Errorf("Expected label URL and tracking number, got %+v", resp)
	}
}

func TestGenerateLabel_UnknownRMA(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/rmas/RMA-0-XXXX/label", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestGenerateLabel_InvalidRMANumber(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/rmas/not-an-rma/label", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestSendEmail_Success(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/emails", models.SendEmailRequest{
		CustomerEmail: "john.doe@example.com",
		TemplateName:  "return_approved",
		Context: map[string]string{
			"customer_name": "John",
			"order_number":  "77893",
			"rma_number":    "RMA-1-ABCD",
			"refund_amount": "129.99",
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.SendEmailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.MessageID == "" {
		t.Error("Expected a message id in the response")
	}
}

func TestSendEmail_UnknownTemplate(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/emails", models.SendEmailRequest{
		CustomerEmail: "john.doe@example.com",
		TemplateName:  "no_such_template",
		Context:       map[string]string{},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestEscalate_Success(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/escalations", models.EscalateRequest{
		SessionID: "sess-1",
		Reason:    "customer is disputing a fraud hold",
		Priority:  models.PriorityHigh,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.EscalateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.TicketID == "" {
		t.Error("Expected a ticket id in the response")
	}
	if resp.Summary == "" {
		t.Error("Expected a handoff summary in the response")
	}
}

func TestEscalate_InvalidPriority(t *testing.T) {
	r, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := postJSON(t, r, "/escalations", models.EscalateRequest{
		SessionID: "sess-1",
		Reason:    "needs human help",
		Priority:  "WHENEVER",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}
