package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fasol-market/api/internal/gateway"
	"github.com/fasol-market/api/internal/middleware"
	"github.com/fasol-market/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HoldInitiator starts a checkout. Satisfied by *service.HoldService.
type HoldInitiator interface {
	InitiateHold(ctx context.Context, req service.CheckoutRequest) (*service.HoldResult, error)
}

// Settler confirms holds and captures them. Satisfied by *service.CaptureService.
type Settler interface {
	ConfirmHold(ctx context.Context, n gateway.Notification) (service.ConfirmResult, error)
	Capture(ctx context.Context, req service.CaptureRequest) (*service.Order, error)
}

// PaymentHandler handles the storefront checkout, the gateway webhook and
// the operator capture command.
type PaymentHandler struct {
	holds   HoldInitiator
	settler Settler
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(holds HoldInitiator, settler Settler) *PaymentHandler {
	return &PaymentHandler{holds: holds, settler: settler}
}

// RegisterPublicRoutes registers the storefront and webhook endpoints.
// Checkout is wrapped by limit when non-nil.
func (h *PaymentHandler) RegisterPublicRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit != nil {
		r.With(limit).Post("/payment", h.Checkout)
	} else {
		r.Post("/payment", h.Checkout)
	}
	r.Post("/payment/notifications", h.Notification)
}

// RegisterOperatorRoutes registers the capture endpoint. Expected to be
// mounted behind Authenticate.
func (h *PaymentHandler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/payment/capture", h.Capture)
}

// --- Request / Response types ---

// orderRef accepts the order id as a JSON string or number.
type orderRef string

func (o *orderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = orderRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*o = orderRef(n.String())
	return nil
}

type checkoutRequest struct {
	ID           orderRef           `json:"id"`
	Cart         []service.CartLine `json:"cart"`
	CustomerName string             `json:"customer_name"`
	Phone        string             `json:"phone"`
	Address      string             `json:"address"`
	Comment      string             `json:"comment"`
	DeliveryTime string             `json:"delivery_time"`
}

type checkoutResponse struct {
	Payment *gateway.Payment `json:"payment"`
	OrderID string           `json:"order_id"`
}

type captureRequest struct {
	OrderID   orderRef           `json:"order_id"`
	FinalCart []service.CartLine `json:"final_cart"`
}

type captureResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Order   *service.Order `json:"order,omitempty"`
}

// --- Handlers ---

// Checkout handles POST /payment: places a hold for the cart plus reserve.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.holds.InitiateHold(r.Context(), service.CheckoutRequest{
		OrderID:      string(req.ID),
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		Comment:      req.Comment,
		DeliveryTime: req.DeliveryTime,
		Cart:         req.Cart,
	})
	if err != nil {
		var apiErr *gateway.APIError
		switch {
		case errors.As(err, &apiErr):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": gatewayPayload(apiErr)})
		case errors.Is(err, service.ErrGateway):
			log.Error().Err(err).Msg("checkout: gateway unavailable")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment gateway unavailable"})
		case isValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Msg("checkout")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{Payment: res.Payment, OrderID: res.Order.ID})
}

// Notification handles the gateway webhook. It always answers 200 "OK" so
// the gateway does not redeliver; failures are logged.
func (h *PaymentHandler) Notification(w http.ResponseWriter, r *http.Request) {
	var n gateway.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Warn().Err(err).Msg("webhook: invalid body")
		writeOK(w)
		return
	}

	result, err := h.settler.ConfirmHold(r.Context(), n)
	if err != nil {
		log.Error().Err(err).
			Str("event", n.Event).
			Str("payment_id", n.Object.ID).
			Msg("webhook: confirm hold failed")
	} else {
		log.Info().
			Str("event", n.Event).
			Str("payment_id", n.Object.ID).
			Str("result", string(result)).
			Msg("webhook processed")
	}
	writeOK(w)
}

// Capture handles POST /payment/capture.
func (h *PaymentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	order, err := h.settler.Capture(r.Context(), service.CaptureRequest{
		OrderID:    string(req.OrderID),
		FinalCart:  req.FinalCart,
		CapturedBy: claims.OperatorID,
	})
	if err != nil {
		writeCaptureError(w, string(req.OrderID), err)
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{
		Success: true,
		Message: "payment for order " + order.ID + " captured",
		Order:   order,
	})
}

// --- Helpers ---

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

func writeCaptureError(w http.ResponseWriter, orderID string, err error) {
	status := captureStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("order_id", orderID).Msg("capture")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, service.ErrGateway) {
		msg = "internal server error"
	}
	writeJSON(w, status, captureResponse{Success: false, Message: msg})
}

func captureStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCaptureInProgress),
		errors.Is(err, service.ErrCaptureExceedsHold),
		errors.Is(err, service.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, service.ErrCartMismatch),
		errors.Is(err, service.ErrNothingToCapture),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		service.ErrInvalidOrderID,
		service.ErrEmptyCart,
		service.ErrInvalidPrice,
		service.ErrInvalidQuantity,
		service.ErrNameRequired,
		service.ErrPhoneRequired,
		service.ErrAddressRequired,
		service.ErrDeliveryUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// gatewayPayload returns the gateway's own error body when it is JSON.
func gatewayPayload(e *gateway.APIError) interface{} {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return e
}

// operatorID is the authenticated caller, or uuid.Nil.
func operatorID(r *http.Request) uuid.UUID {
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		return c.OperatorID
	}
	return uuid.Nil
}
