package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySettlement(ctx context.Context, arg database.GetDailySettlementParams) ([]database.GetDailySettlementRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Dates are interpreted in loc.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers owner-only report endpoints. Mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-settlement", h.DailySettlement)
}

// --- Response types ---

type dailySettlementResponse struct {
	Date           string `json:"date"`
	OrderCount     int64  `json:"order_count"`
	HeldAmount     string `json:"held_amount"`
	CapturedAmount string `json:"captured_amount"`
	ReleasedAmount string `json:"released_amount"`
}

// --- Handlers ---

// DailySettlement returns per-day captured totals and the reserve released
// back to customers for a date range.
func (h *ReportsHandler) DailySettlement(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySettlement(r.Context(), database.GetDailySettlementParams{
		Tz:        h.loc.String(),
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		log.Error().Err(err).Msg("get daily settlement")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySettlementResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.Day.Valid {
			date = row.Day.Time.Format("2006-01-02")
		}
		resp[i] = dailySettlementResponse{
			Date:           date,
			OrderCount:     row.OrderCount,
			HeldAmount:     numericToString(row.HeldAmount),
			CapturedAmount: numericToString(row.CapturedAmount),
			ReleasedAmount: numericToString(row.ReleasedAmount),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date in the shop's timezone.
// Defaults to the last 30 days. The returned end is exclusive (next midnight).
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(n.Int, n.Exp).StringFixed(2)
}
