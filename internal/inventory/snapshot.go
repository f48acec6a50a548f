package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductView is a product as served to the storefront. Extra holds the
// upstream object; the modelled fields below take precedence.
type ProductView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	GroupID   string          `json:"groupId,omitempty"`
	Unit      string          `json:"unit"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	Rests     decimal.Decimal `json:"rests"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

type GroupView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// Snapshot is the local catalog. LastSync is nil before the first sync.
type Snapshot struct {
	Products []ProductView `json:"products"`
	Catalog  []GroupView   `json:"catalog"`
	LastSync *time.Time    `json:"lastSync"`
}

// Snapshot reads the current local catalog.
func (s *Syncer) Snapshot(ctx context.Context) (*Snapshot, error) {
	return LoadSnapshot(ctx, s.store)
}

// LoadSnapshot reads the catalog from store.
func LoadSnapshot(ctx context.Context, store CatalogStore) (*Snapshot, error) {
	products, err := store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	groups, err := store.ListProductGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list product groups: %w", err)
	}

	snap := &Snapshot{
		Products: make([]ProductView, 0, len(products)),
		Catalog:  make([]GroupView, 0, len(groups)),
	}
	for _, p := range products {
		v := ProductView{
			ID:        p.ID,
			Name:      p.Name,
			GroupID:   p.GroupID.String,
			Unit:      p.Unit,
			SellPrice: numericToDecimal(p.SellPrice),
			Rests:     numericToDecimal(p.Rests),
		}
		if len(p.Payload) > 0 && string(p.Payload) != "{}" {
			v.Extra = p.Payload
		}
		snap.Products = append(snap.Products, v)
	}
	for _, g := range groups {
		snap.Catalog = append(snap.Catalog, GroupView{ID: g.ID, Name: g.Name, ParentID: g.ParentID.String})
	}

	state, err := store.GetCatalogSyncState(ctx)
	switch {
	case err == nil:
		last := state.LastSync
		snap.LastSync = &last
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	return snap, nil
}
