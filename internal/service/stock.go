package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fasol-market/api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// StockStore defines the DB method needed to apply captured quantities to
// the local inventory snapshot.
type StockStore interface {
	DecrementProductRests(ctx context.Context, arg database.DecrementProductRestsParams) (string, error)
}

// decrementStock subtracts each captured quantity from the snapshot, floored
// at zero. Products missing from the snapshot are skipped.
func decrementStock(ctx context.Context, store StockStore, orderID string, cart []CartLine) error {
	for i, line := range cart {
		if !line.Quantity.IsPositive() {
			continue
		}
		if line.ProductID == "" {
			log.Warn().Str("order_id", orderID).Str("name", line.Name).Msg("line has no product id, stock not decremented")
			continue
		}

		_, err := store.DecrementProductRests(ctx, database.DecrementProductRestsParams{
			Quantity: quantityToNumeric(line.Quantity),
			ID:       line.ProductID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Warn().
					Str("order_id", orderID).
					Str("product_id", line.ProductID).
					Msg("product not in local snapshot, skipping")
				continue
			}
			return fmt.Errorf("cart[%d]: decrement %s: %w", i, line.ProductID, err)
		}
	}
	return nil
}
