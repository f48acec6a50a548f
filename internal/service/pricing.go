package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReserveRate is the multiplier applied to weight-priced lines at hold time.
// The extra 15% covers the operator weighing out more than was ordered.
var ReserveRate = decimal.RequireFromString("1.15")

// DeliveryPolicy is the delivery fee step function over the items subtotal.
type DeliveryPolicy struct {
	LowThreshold  decimal.Decimal // below: delivery unavailable
	HighThreshold decimal.Decimal // at or above: free delivery
	FlatFee       decimal.Decimal
}

// DefaultDeliveryPolicy returns the shop's standard thresholds.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		LowThreshold:  decimal.NewFromInt(1000),
		HighThreshold: decimal.NewFromInt(3000),
		FlatFee:       decimal.NewFromInt(200),
	}
}

// Fee returns the delivery fee for subtotal, or ErrDeliveryUnavailable below
// the low threshold.
func (p DeliveryPolicy) Fee(subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case subtotal.LessThan(p.LowThreshold):
		return decimal.Zero, fmt.Errorf("%w: minimum is %s", ErrDeliveryUnavailable, p.LowThreshold.StringFixed(2))
	case subtotal.GreaterThanOrEqual(p.HighThreshold):
		return decimal.Zero, nil
	default:
		return p.FlatFee, nil
	}
}

// HoldQuote is the amount breakdown computed at checkout.
type HoldQuote struct {
	Subtotal          decimal.Decimal
	TotalWithReserve  decimal.Decimal
	ReserveDifference decimal.Decimal
	DeliveryFee       decimal.Decimal
	AmountToPay       decimal.Decimal
}

// Quote computes the hold amount for cart. Weight-priced lines are reserved
// at ReserveRate, discrete lines at face value.
func (p DeliveryPolicy) Quote(cart []CartLine) (HoldQuote, error) {
	subtotal := decimal.Zero
	withReserve := decimal.Zero
	for _, line := range cart {
		lineTotal := line.Total()
		subtotal = subtotal.Add(lineTotal)
		if line.Weighted() {
			withReserve = withReserve.Add(lineTotal.Mul(ReserveRate))
		} else {
			withReserve = withReserve.Add(lineTotal)
		}
	}
	withReserve = withReserve.Round(2)

	fee, err := p.Fee(subtotal)
	if err != nil {
		return HoldQuote{}, err
	}

	return HoldQuote{
		Subtotal:          subtotal,
		TotalWithReserve:  withReserve,
		ReserveDifference: withReserve.Sub(subtotal).Round(2),
		DeliveryFee:       fee,
		AmountToPay:       withReserve.Add(fee),
	}, nil
}

// ItemsTotal is the exact sum of line totals, used for the final capture.
func ItemsTotal(cart []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range cart {
		total = total.Add(line.Total())
	}
	return total
}
