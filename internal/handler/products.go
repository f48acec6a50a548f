package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/fasol-market/api/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CatalogService reads and refreshes the local product snapshot.
// Satisfied by *inventory.Syncer.
type CatalogService interface {
	Snapshot(ctx context.Context) (*inventory.Snapshot, error)
	SyncOnce(ctx context.Context) (inventory.Result, error)
}

// ProductHandler serves the storefront catalog.
type ProductHandler struct {
	catalog CatalogService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalog CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// RegisterPublicRoutes registers the storefront catalog read.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/products-data", h.Data)
}

// RegisterOwnerRoutes registers the on-demand sync. Owner only.
func (h *ProductHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/products/sync", h.Sync)
}

// --- Response types ---

type syncResponse struct {
	Success bool `json:"success"`
	inventory.Result
}

// --- Handlers ---

// Data returns the local catalog snapshot with product rests.
func (h *ProductHandler) Data(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("load catalog snapshot")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Sync pulls the catalog from the inventory provider now.
func (h *ProductHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.SyncOnce(r.Context())
	if err != nil {
		if errors.Is(err, inventory.ErrSyncInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already in progress"})
			return
		}
		log.Error().Err(err).Msg("catalog sync")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "catalog sync failed"})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Success: true, Result: res})
}
