package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoShop         = errors.New("catalog API returned no shop")
	ErrSyncInProgress = errors.New("catalog sync already running")
)

// Source is the upstream catalog. Satisfied by *Client.
type Source interface {
	Shops(ctx context.Context) ([]Shop, error)
	Products(ctx context.Context, shopID string) ([]Product, error)
	Rests(ctx context.Context, shopID string) ([]Rest, error)
	Groups(ctx context.Context, shopID string) ([]Group, error)
}

// CatalogStore defines the DB methods the syncer needs.
// Satisfied by *database.Queries.
type CatalogStore interface {
	DeleteAllProducts(ctx context.Context) error
	DeleteAllProductGroups(ctx context.Context) error
	InsertProducts(ctx context.Context, arg []database.InsertProductsParams) (int64, error)
	InsertProductGroups(ctx context.Context, arg []database.InsertProductGroupsParams) (int64, error)
	UpsertCatalogSyncState(ctx context.Context, arg database.UpsertCatalogSyncStateParams) error
	ListProducts(ctx context.Context) ([]database.Product, error)
	ListProductGroups(ctx context.Context) ([]database.ProductGroup, error)
	GetCatalogSyncState(ctx context.Context) (database.CatalogSyncState, error)
}

type NewCatalogStore func(db database.DBTX) CatalogStore

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Result summarizes one sync.
type Result struct {
	ShopID   string    `json:"shop_id"`
	Products int       `json:"products"`
	Groups   int       `json:"groups"`
	SyncedAt time.Time `json:"synced_at"`
}

// Syncer replaces the local catalog snapshot with the upstream one.
type Syncer struct {
	source   Source
	store    CatalogStore
	pool     TxBeginner
	newStore NewCatalogStore
	shopID   string

	running  sync.Mutex
	now      func() time.Time
	onSynced func(Result)
}

// NewSyncer creates a Syncer. An empty shopID uses the first shop the API returns.
func NewSyncer(source Source, store CatalogStore, pool TxBeginner, newStore NewCatalogStore, shopID string) *Syncer {
	return &Syncer{
		source:   source,
		store:    store,
		pool:     pool,
		newStore: newStore,
		shopID:   shopID,
		now:      time.Now,
	}
}

// OnSynced registers a callback run after every successful sync.
func (s *Syncer) OnSynced(fn func(Result)) {
	s.onSynced = fn
}

// SyncOnce fetches products, rests and groups concurrently and swaps the
// snapshot in one transaction. Products without a rest record get zero.
func (s *Syncer) SyncOnce(ctx context.Context) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	shopID, err := s.resolveShop(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		products []Product
		rests    []Rest
		groups   []Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.source.Products(gctx, shopID)
		return err
	})
	g.Go(func() (err error) {
		rests, err = s.source.Rests(gctx, shopID)
		return err
	})
	g.Go(func() (err error) {
		groups, err = s.source.Groups(gctx, shopID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("fetch catalog: %w", err)
	}

	restByID := make(map[string]decimal.Decimal, len(rests))
	for _, r := range rests {
		if r.ProductID == "" {
			continue
		}
		restByID[r.ProductID] = r.Rest
	}

	syncedAt := s.now()
	productRows := make([]database.InsertProductsParams, 0, len(products))
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if p.ID == "" || seen[p.ID] {
			log.Warn().Str("product_id", p.ID).Str("name", p.Name).Msg("skipping product without unique id")
			continue
		}
		seen[p.ID] = true
		productRows = append(productRows, database.InsertProductsParams{
			ID:        p.ID,
			Name:      p.Name,
			GroupID:   pgtype.Text{String: p.GroupID, Valid: p.GroupID != ""},
			Unit:      p.Unit,
			SellPrice: toNumeric(p.SellPrice, 2),
			Rests:     toNumeric(restByID[p.ID], 3),
			Payload:   rawOrEmpty(p.Raw),
			SyncedAt:  syncedAt,
		})
	}

	groupRows := make([]database.InsertProductGroupsParams, 0, len(groups))
	for _, gr := range groups {
		if gr.ID == "" {
			continue
		}
		groupRows = append(groupRows, database.InsertProductGroupsParams{
			ID:       gr.ID,
			Name:     gr.Name,
			ParentID: pgtype.Text{String: gr.ParentID, Valid: gr.ParentID != ""},
			SyncedAt: syncedAt,
		})
	}

	if err := s.replace(ctx, productRows, groupRows, syncedAt); err != nil {
		return Result{}, err
	}

	res := Result{ShopID: shopID, Products: len(productRows), Groups: len(groupRows), SyncedAt: syncedAt}
	log.Info().
		Str("shop_id", shopID).
		Int("products", res.Products).
		Int("groups", res.Groups).
		Msg("catalog synced")
	if s.onSynced != nil {
		s.onSynced(res)
	}
	return res, nil
}

func (s *Syncer) resolveShop(ctx context.Context) (string, error) {
	if s.shopID != "" {
		return s.shopID, nil
	}
	shops, err := s.source.Shops(ctx)
	if err != nil {
		return "", fmt.Errorf("list shops: %w", err)
	}
	if len(shops) == 0 || shops[0].ID == "" {
		return "", ErrNoShop
	}
	return shops[0].ID, nil
}

func (s *Syncer) replace(ctx context.Context, products []database.InsertProductsParams, groups []database.InsertProductGroupsParams, syncedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := store.DeleteAllProducts(ctx); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	if err := store.DeleteAllProductGroups(ctx); err != nil {
		return fmt.Errorf("clear product groups: %w", err)
	}
	if len(groups) > 0 {
		if _, err := store.InsertProductGroups(ctx, groups); err != nil {
			return fmt.Errorf("insert product groups: %w", err)
		}
	}
	if len(products) > 0 {
		if _, err := store.InsertProducts(ctx, products); err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
	}
	if err := store.UpsertCatalogSyncState(ctx, database.UpsertCatalogSyncStateParams{
		LastSync:     syncedAt,
		ProductCount: int32(len(products)),
	}); err != nil {
		return fmt.Errorf("record sync state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Run syncs immediately and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	runOnce := func() {
		if _, err := s.SyncOnce(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) && ctx.Err() == nil {
			log.Error().Err(err).Msg("catalog sync failed")
		}
	}

	runOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func toNumeric(d decimal.Decimal, places int32) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(places))
	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func rawOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
