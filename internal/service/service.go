package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"return-eligibility-api/internal/cache"
	"return-eligibility-api/internal/database"
	"return-eligibility-api/internal/eligibility"
	"return-eligibility-api/internal/email"
	"return-eligibility-api/internal/events"
	"return-eligibility-api/internal/features"
	"return-eligibility-api/internal/models"
)

// ErrNotEligible is returned by CreateRMA when the eligibility decision did
// not approve the return. The response carries the decision so callers can
// show the customer why.
var ErrNotEligible = errors.New("return is not eligible")

// ErrNotFound is re-exported so handlers don't import the database package.
var ErrNotFound = database.ErrNotFound

const (
	orderCacheTTL  = 30 * time.Second
	policyCacheTTL = time.Minute

	emailLookupLimit = 10
)

// Service provides business logic for the return eligibility API.
type Service struct {
	db     *database.DB
	events *events.Manager
	flags  *features.Manager
	cache  cache.Cache
	now    func() time.Time
}

// Options holds optional collaborators for a service instance.
type Options struct {
	Events *events.Manager
	Flags  *features.Manager
	Cache  cache.Cache
	Now    func() time.Time
}

// NewService creates a service with default collaborators: disabled events,
// no flags registered, in-memory cache.
func NewService(db *database.DB) *Service {
	return NewServiceWithOptions(db, Options{})
}

// NewServiceWithOptions creates a service instance with custom collaborators.
func NewServiceWithOptions(db *database.DB, opts Options) *Service {
	s := &Service{
		db:     db,
		events: opts.Events,
		flags:  opts.Flags,
		cache:  opts.Cache,
		now:    opts.Now,
	}
	if s.events == nil {
		s.events = events.NewManager(false)
	}
	if s.flags == nil {
		s.flags = features.NewManager()
	}
	if s.cache == nil {
		s.cache = cache.NewInMemoryCache()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CheckEligibility evaluates a return request and always returns a decision,
// never an error: store faults surface as DATA_ERR decisions per the engine
// contract. The order snapshot and active policies are read once; the engine
// itself performs no I/O.
func (s *Service) CheckEligibility(ctx context.Context, orderID string, itemIDs []int64, returnReason string) models.EligibilityDecision {
	order, err := s.db.FindOrderByNumber(orderID)
	if errors.Is(err, database.ErrNotFound) {
		decision := eligibility.OrderNotFound(orderID)
		s.events.PublishEligibilityChecked(ctx, orderID, itemIDs, decision)
		return decision
	}
	if err != nil {
		decision := eligibility.DataError()
		s.events.PublishEligibilityChecked(ctx, orderID, itemIDs, decision)
		return decision
	}

	policies, err := s.activePolicies(ctx)
	if err != nil {
		decision := eligibility.DataError()
		s.events.PublishEligibilityChecked(ctx, orderID, itemIDs, decision)
		return decision
	}

	decision := eligibility.Evaluate(order, policies, itemIDs, returnReason, s.now())
	s.events.PublishEligibilityChecked(ctx, orderID, itemIDs, decision)
	return decision
}

// GetOrderDetails returns one order by its number, through the cache when
// the cache flag is on.
func (s *Service) GetOrderDetails(ctx context.Context, orderNumber string) (models.Order, error) {
	useCache := s.flags.IsEnabled(features.FeatureCacheEnabled)
	if useCache {
		var cached models.Order
		if err := cache.GetJSON(ctx, s.cache, cache.OrderKey(orderNumber), &cached); err == nil {
			return cached, nil
		}
	}

	order, err := s.db.FindOrderByNumber(orderNumber)
	if err != nil {
		return models.Order{}, err
	}

	if useCache {
		_ = cache.SetJSON(ctx, s.cache, cache.OrderKey(orderNumber), order, orderCacheTTL)
	}

	return order, nil
}

// GetOrdersByEmail returns a customer's most recent orders, newest first.
func (s *Service) GetOrdersByEmail(ctx context.Context, customerEmail string) ([]models.Order, error) {
	return s.db.FindOrdersByEmail(customerEmail, emailLookupLimit)
}

// CreateRMA re-evaluates eligibility and, only on approval, creates the RMA
// and flips the order to Return_Initiated. The engine approves a double
// submission twice; callers that need at-most-once semantics must dedupe
// before calling (the engine itself offers no such guarantee).
func (s *Service) CreateRMA(ctx context.Context, req models.CreateRMARequest) (models.CreateRMAResponse, error) {
	decision := s.CheckEligibility(ctx, req.OrderID, req.ItemIDs, req.ReturnReason)
	if !decision.Eligible {
		return models.CreateRMAResponse{Decision: decision}, ErrNotEligible
	}

	order, err := s.db.FindOrderByNumber(req.OrderID)
	if err != nil {
		return models.CreateRMAResponse{}, fmt.Errorf("failed to load order: %w", err)
	}

	requested := make(map[int64]bool, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		requested[id] = true
	}
	var refund int64
	var itemIDs []int64
	for _, item := range order.Items {
		if requested[item.ID] {
			refund += item.PriceCents * int64(item.Quantity)
			itemIDs = append(itemIDs, item.ID)
		}
	}

	now := s.now().UTC()
	rma := models.RMA{
		RMANumber:    generateRMANumber(now),
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		ReturnReason: req.ReturnReason,
		ReasonCode:   decision.ReasonCode,
		Status:       models.RMAInitiated,
		ItemIDs:      itemIDs,
		RefundCents:  refund,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := s.db.CreateRMA(rma)
	if err != nil {
		return models.CreateRMAResponse{}, fmt.Errorf("failed to create rma: %w", err)
	}

	// The cached order snapshot now has a stale status.
	_ = s.cache.Delete(ctx, cache.OrderKey(req.OrderID))

	s.events.PublishRMACreated(ctx, rma.RMANumber, req.OrderID, refund)

	return models.CreateRMAResponse{
		RMANumber:   rma.RMANumber,
		RMAID:       id,
		RefundCents: refund,
		Decision:    decision,
	}, nil
}

// GenerateReturnLabel simulates the carrier integration: it attaches a
// tracking number and label URL to the RMA and moves it to Label_Sent.
func (s *Service) GenerateReturnLabel(ctx context.Context, rmaNumber string) (models.GenerateLabelResponse, error) {
	if _, err := s.db.GetRMAByNumber(rmaNumber); err != nil {
		return models.GenerateLabelResponse{}, err
	}

	trackingNumber := generateTrackingNumber()
	labelURL := fmt.Sprintf("https://returns.example.com/labels/%s.pdf", rmaNumber)

	if err := s.db.SetRMALabel(rmaNumber, labelURL, trackingNumber); err != nil {
		return models.GenerateLabelResponse{}, fmt.Errorf("failed to store label: %w", err)
	}

	s.events.PublishLabelGenerated(ctx, rmaNumber, trackingNumber, labelURL)

	return models.GenerateLabelResponse{
		LabelURL:       labelURL,
		TrackingNumber: trackingNumber,
	}, nil
}

// SendEmail renders a template and simulates delivery. When the context
// carries a session_id the send is recorded in the conversation log.
func (s *Service) SendEmail(ctx context.Context, req models.SendEmailRequest) (models.SendEmailResponse, error) {
	body, err := email.Render(req.TemplateName, req.Context)
	if err != nil {
		return models.SendEmailResponse{}, err
	}

	messageID := fmt.Sprintf("MSG-%d-%s", s.now().Unix(), shortID())

	if sessionID := req.Context["session_id"]; sessionID != "" {
		metadata, _ := json.Marshal(map[string]string{
			"template":   req.TemplateName,
			"message_id": messageID,
		})
		_ = s.db.InsertConversationLog(models.ConversationLog{
			SessionID:   sessionID,
			MessageType: models.MessageSystem,
			Content:     fmt.Sprintf("Email sent: %s", req.TemplateName),
			Metadata:    string(metadata),
		})
	}

	s.events.PublishEmailSent(ctx, req.CustomerEmail, req.TemplateName, messageID)

	return models.SendEmailResponse{
		MessageID: messageID,
		Preview:   email.Preview(body),
	}, nil
}

// EscalateToHuman opens a ticket, builds a handoff summary from the session's
// conversation log, and flags any RMAs mentioned in that log as escalated.
func (s *Service) EscalateToHuman(ctx context.Context, req models.EscalateRequest) (models.EscalateResponse, error) {
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	ticketID := fmt.Sprintf("TICKET-%d-%s", s.now().Unix(), shortID())

	logs, err := s.db.ListConversationLogs(req.SessionID)
	if err != nil {
		return models.EscalateResponse{}, fmt.Errorf("failed to load conversation: %w", err)
	}

	summary := buildHandoffSummary(logs, req.Reason)

	for _, l := range logs {
		if l.Metadata == "" || !strings.Contains(l.Metadata, "rma_number") {
			continue
		}
		var metadata struct {
			RMANumber string `json:"rma_number"`
		}
		if err := json.Unmarshal([]byte(l.Metadata), &metadata); err != nil || metadata.RMANumber == "" {
			continue
		}
		if err := s.db.MarkRMAEscalated(metadata.RMANumber, req.Reason); err != nil && !errors.Is(err, database.ErrNotFound) {
			return models.EscalateResponse{}, fmt.Errorf("failed to escalate rma %s: %w", metadata.RMANumber, err)
		}
	}

	metadata, _ := json.Marshal(map[string]string{
		"ticket_id": ticketID,
		"priority":  string(priority),
		"reason":    req.Reason,
	})
	if err := s.db.InsertConversationLog(models.ConversationLog{
		SessionID:   req.SessionID,
		MessageType: models.MessageSystem,
		Content:     fmt.Sprintf("Case escalated to human agent. Ticket: %s", ticketID),
		Metadata:    string(metadata),
	}); err != nil {
		return models.EscalateResponse{}, fmt.Errorf("failed to log escalation: %w", err)
	}

	s.events.PublishEscalated(ctx, req.SessionID, ticketID, priority)

	return models.EscalateResponse{
		TicketID: ticketID,
		Summary:  summary,
	}, nil
}

// activePolicies reads the policy table, through the cache when enabled.
func (s *Service) activePolicies(ctx context.Context) ([]models.ReturnPolicy, error) {
	useCache := s.flags.IsEnabled(features.FeatureCacheEnabled)
	if useCache {
		var cached []models.ReturnPolicy
		if err := cache.GetJSON(ctx, s.cache, cache.KeyActivePolicies, &cached); err == nil {
			return cached, nil
		}
	}

	policies, err := s.db.ListActivePolicies()
	if err != nil {
		return nil, err
	}

	if useCache {
		_ = cache.SetJSON(ctx, s.cache, cache.KeyActivePolicies, policies, policyCacheTTL)
	}

	return policies, nil
}

// buildHandoffSummary produces a structured brief for the human agent.
func buildHandoffSummary(logs []models.ConversationLog, reason string) string {
	if len(logs) == 0 {
		return fmt.Sprintf("Escalation reason: %s. No conversation history available.", reason)
	}

	var userMessages, toolCalls int
	firstUserMessage := ""
	for _, l := range logs {
		switch l.MessageType {
		case models.MessageUser:
			if firstUserMessage == "" {
				firstUserMessage = l.Content
			}
			userMessages++
		case models.MessageTool:
			toolCalls++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ESCALATION REASON: %s\n", reason)
	fmt.Fprintf(&sb, "CONVERSATION LENGTH: %d messages\n", len(logs))
	if firstUserMessage != "" {
		if len(firstUserMessage) > 200 {
			firstUserMessage = firstUserMessage[:200]
		}
		fmt.Fprintf(&sb, "CUSTOMER REQUEST: %s\n", firstUserMessage)
	}
	if toolCalls > 0 {
		fmt.Fprintf(&sb, "ACTIONS TAKEN: %d tool calls executed\n", toolCalls)
	}

	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "fraud") || strings.Contains(lower, "risk"):
		sb.WriteString("RECOMMENDED ACTION: Verify customer identity and review account history")
	case strings.Contains(lower, "damaged") || strings.Contains(lower, "defective"):
		sb.WriteString("RECOMMENDED ACTION: Request photos and initiate quality control inspection")
	default:
		sb.WriteString("RECOMMENDED ACTION: Review case details and provide personalized assistance")
	}

	return sb.String()
}

// generateRMANumber builds RMA-<unix>-<SUFFIX> identifiers.
func generateRMANumber(now time.Time) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("RMA-%d-%s", now.Unix(), suffix)
}

// generateTrackingNumber builds a mock carrier tracking number.
func generateTrackingNumber() string {
	carriers := []string{"USPS", "UPS", "FEDEX"}
	digits := make([]byte, 12)
	for i := range digits {
		digits[i] = byte('0' + rand.Intn(10))
	}
	return fmt.Sprintf("%s-%s", carriers[rand.Intn(len(carriers))], digits)
}

// shortID returns an 8-character identifier suffix.
func shortID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
