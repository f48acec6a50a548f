package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// OperatorStore defines the database methods needed by operator handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OperatorStore interface {
	ListOperators(ctx context.Context) ([]database.Operator, error)
	CreateOperator(ctx context.Context, arg database.CreateOperatorParams) (database.Operator, error)
	UpdateOperator(ctx context.Context, arg database.UpdateOperatorParams) (database.Operator, error)
	DeactivateOperator(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// OperatorHandler handles operator CRUD endpoints.
type OperatorHandler struct {
	store OperatorStore
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(store OperatorStore) *OperatorHandler {
	return &OperatorHandler{store: store}
}

// RegisterRoutes registers operator CRUD endpoints. Mounted at /operators.
func (h *OperatorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createOperatorRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

type updateOperatorRequest struct {
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

type operatorResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toOperatorResponse(op database.Operator) operatorResponse {
	resp := operatorResponse{
		ID:        op.ID,
		Email:     op.Email,
		FullName:  op.FullName,
		Role:      op.Role,
		IsActive:  op.IsActive,
		CreatedAt: op.CreatedAt,
		UpdatedAt: op.UpdatedAt,
	}
	if op.TelegramChatID.Valid {
		id := op.TelegramChatID.Int64
		resp.TelegramChatID = &id
	}
	return resp
}

// --- Handlers ---

// List returns all active operators.
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := h.store.ListOperators(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list operators")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]operatorResponse, len(ops))
	for i, op := range ops {
		resp[i] = toOperatorResponse(op)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new operator.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password, full_name, and role are required"})
		return
	}
	if msg := validateOperatorFields(req.Email, req.Role); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("create operator: hash password")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	op, err := h.store.CreateOperator(r.Context(), database.CreateOperatorParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
		TelegramChatID: chatIDParam(req.TelegramChatID),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email or chat already registered"})
			return
		}
		log.Error().Err(err).Msg("create operator")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOperatorResponse(op))
}

// Update modifies an existing operator.
func (h *OperatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid operator ID"})
		return
	}

	var req updateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.FullName == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, full_name, and role are required"})
		return
	}
	if msg := validateOperatorFields(req.Email, req.Role); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	op, err := h.store.UpdateOperator(r.Context(), database.UpdateOperatorParams{
		ID:             id,
		Email:          req.Email,
		FullName:       req.FullName,
		Role:           req.Role,
		TelegramChatID: chatIDParam(req.TelegramChatID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "operator not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email or chat already registered"})
			return
		}
		log.Error().Err(err).Msg("update operator")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOperatorResponse(op))
}

// Delete deactivates an operator. Their chat loses bot access immediately.
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid operator ID"})
		return
	}

	if _, err := h.store.DeactivateOperator(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "operator not found"})
			return
		}
		log.Error().Err(err).Msg("deactivate operator")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func validateOperatorFields(email, role string) string {
	if !strings.Contains(email, "@") {
		return "invalid email format"
	}
	if !isValidRole(role) {
		return "invalid role"
	}
	return ""
}

func isValidRole(role string) bool {
	switch role {
	case enum.OperatorRoleOwner, enum.OperatorRoleOperator:
		return true
	}
	return false
}

func chatIDParam(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
