package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"return-eligibility-api/internal/models"
	"return-eligibility-api/internal/service"
	"return-eligibility-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts all API routes on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/returns", func(r chi.Router) {
		r.Post("/eligibility", h.CheckEligibility)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/{order_number}", h.GetOrder)
	})
	r.Route("/rmas", func(r chi.Router) {
		r.Post("/", h.CreateRMA)
		r.Post("/{rma_number}/label", h.GenerateLabel)
	})
	r.Post("/emails", h.SendEmail)
	r.Post("/escalations", h.Escalate)
}

// CheckEligibility handles POST /returns/eligibility. The response is always
// a decision record; rejections are decisions, not HTTP errors.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req models.CheckEligibilityRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.OrderID = validation.SanitizeString(req.OrderID)
	req.ReturnReason = validation.SanitizeString(req.ReturnReason)

	if err := validation.ValidateCheckEligibility(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision := h.service.CheckEligibility(r.Context(), req.OrderID, req.ItemIDs, req.ReturnReason)
	h.respondJSON(w, http.StatusOK, decision)
}

// GetOrder handles GET /orders/{order_number}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := validation.SanitizeString(chi.URLParam(r, "order_number"))
	if err := validation.ValidateOrderNumber(orderNumber); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.GetOrderDetails(r.Context(), orderNumber)
	if errors.Is(err, service.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	h.respondJSON(w, http.StatusOK, models.OrderDetailsResponse{Order: &order})
}

// ListOrders handles GET /orders?email=...
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerEmail := validation.SanitizeString(r.URL.Query().Get("email"))
	if err := validation.ValidateEmail(customerEmail); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.service.GetOrdersByEmail(r.Context(), customerEmail)
	if errors.Is(err, service.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "no orders found for that email")
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}

	h.respondJSON(w, http.StatusOK, models.OrderDetailsResponse{Orders: orders})
}

// CreateRMA handles POST /rmas. A request whose decision is not eligible is
// rejected with 409 and the decision body, so the caller can branch on the
// reason code.
func (h *Handler) CreateRMA(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRMARequest
	if !h.decode(w, r, &req) {
		return
	}

	req.OrderID = validation.SanitizeString(req.OrderID)
	req.ReturnReason = validation.SanitizeString(req.ReturnReason)

	if err := validation.ValidateCheckEligibility(models.CheckEligibilityRequest(req)); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.CreateRMA(r.Context(), req)
	if errors.Is(err, service.ErrNotEligible) {
		h.respondJSON(w, http.StatusConflict, resp)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to create rma")
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// GenerateLabel handles POST /rmas/{rma_number}/label.
func (h *Handler) GenerateLabel(w http.ResponseWriter, r *http.Request) {
	rmaNumber := validation.SanitizeString(chi.URLParam(r, "rma_number"))
	if err := validation.ValidateRMANumber(rmaNumber); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.GenerateReturnLabel(r.Context(), rmaNumber)
	if errors.Is(err, service.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "rma not found")
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to generate label")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// SendEmail handles POST /emails.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req models.SendEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.CustomerEmail = validation.SanitizeString(req.CustomerEmail)
	req.TemplateName = validation.SanitizeString(req.TemplateName)

	if err := validation.ValidateSendEmail(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SendEmail(r.Context(), req)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Escalate handles POST /escalations.
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req models.EscalateRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.SessionID = validation.SanitizeString(req.SessionID)
	req.Reason = validation.SanitizeString(req.Reason)

	if err := validation.ValidateEscalate(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.EscalateToHuman(r.Context(), req)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to escalate")
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// decode reads a bounded JSON body into dest, responding with 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
