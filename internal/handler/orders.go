package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// OrderService is the operator view of the settlement ledger.
// Satisfied by *service.CaptureService.
type OrderService interface {
	ListAssembly(ctx context.Context) ([]service.Order, error)
	GetAssembly(ctx context.Context, orderID string) (*service.Order, error)
	AdjustLine(ctx context.Context, orderID string, index, grams int) (*service.Order, error)
	ListPaid(ctx context.Context, statuses []string) ([]service.Order, error)
	AdvanceFulfillment(ctx context.Context, orderID, status string) (*service.Order, error)
}

// OrderHandler serves the structured operator commands over HTTP.
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints. Mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/assembly", h.ListAssembly)
	r.Get("/assembly/{id}", h.GetAssembly)
	r.Patch("/assembly/{id}/lines/{index}", h.AdjustLine)
	r.Get("/paid", h.ListPaid)
	r.Patch("/paid/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type adjustLineRequest struct {
	Grams *int `json:"grams"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// ListAssembly returns orders awaiting weighing and capture.
func (h *OrderHandler) ListAssembly(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListAssembly(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list assembly orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if orders == nil {
		orders = []service.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetAssembly returns one order awaiting assembly.
func (h *OrderHandler) GetAssembly(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetAssembly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AdjustLine sets the weighed quantity of one weight-priced line.
func (h *OrderHandler) AdjustLine(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return
	}

	var req adjustLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Grams == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "grams is required"})
		return
	}

	order, err := h.svc.AdjustLine(r.Context(), orderID, index, *req.Grams)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	log.Info().
		Str("order_id", orderID).
		Int("line", index).
		Int("grams", *req.Grams).
		Str("operator_id", operatorID(r).String()).
		Msg("line weight adjusted")
	writeJSON(w, http.StatusOK, order)
}

// ListPaid returns captured orders, filtered by ?status=new,in_progress.
// Without a filter, orders that are not yet completed are returned.
func (h *OrderHandler) ListPaid(w http.ResponseWriter, r *http.Request) {
	statuses := []string{enum.FulfillmentNew, enum.FulfillmentInProgress}
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = statuses[:0]
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if !isFulfillmentStatus(s) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status: " + s})
				return
			}
			statuses = append(statuses, s)
		}
	}

	orders, err := h.svc.ListPaid(r.Context(), statuses)
	if err != nil {
		log.Error().Err(err).Msg("list paid orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if orders == nil {
		orders = []service.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateStatus advances the fulfillment status of a paid order.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isFulfillmentStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.svc.AdvanceFulfillment(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- Helpers ---

func isFulfillmentStatus(s string) bool {
	switch s {
	case enum.FulfillmentNew, enum.FulfillmentInProgress, enum.FulfillmentCompleted:
		return true
	}
	return false
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "line not found"})
	case errors.Is(err, service.ErrNotWeighted),
		errors.Is(err, service.ErrInvalidWeight):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrCaptureInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("order command")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
