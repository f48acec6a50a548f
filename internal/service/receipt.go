package service

import (
	"github.com/fasol-market/api/internal/gateway"
	"github.com/shopspring/decimal"
)

const (
	reservationLineName = "Резервирование средств за весовой товар"
	deliveryLineName    = "Доставка"
)

// holdReceipt lists every cart line plus the synthetic reservation and
// delivery lines so that the receipt total equals the held amount.
func holdReceipt(o Order) *gateway.Receipt {
	items := cartReceiptItems(o.Cart, gateway.PaymentModeFullPrepayment)
	if o.ReserveDifference.IsPositive() {
		items = append(items, serviceReceiptItem(reservationLineName, o.ReserveDifference, gateway.PaymentModeFullPrepayment))
	}
	if o.DeliveryFee.IsPositive() {
		items = append(items, serviceReceiptItem(deliveryLineName, o.DeliveryFee, gateway.PaymentModeFullPrepayment))
	}
	return &gateway.Receipt{
		Customer: gateway.Customer{FullName: o.CustomerName, Phone: o.Phone},
		Items:    items,
	}
}

// captureReceipt mirrors the final cart and the delivery fee. The reservation
// line never appears here.
func captureReceipt(o Order, cart []CartLine) *gateway.Receipt {
	items := cartReceiptItems(cart, gateway.PaymentModeFullPayment)
	if o.DeliveryFee.IsPositive() {
		items = append(items, serviceReceiptItem(deliveryLineName, o.DeliveryFee, gateway.PaymentModeFullPayment))
	}
	return &gateway.Receipt{
		Customer: gateway.Customer{FullName: o.CustomerName, Phone: o.Phone},
		Items:    items,
	}
}

func cartReceiptItems(cart []CartLine, mode string) []gateway.ReceiptItem {
	items := make([]gateway.ReceiptItem, 0, len(cart)+2)
	for _, line := range cart {
		// Lines weighed out to zero are dropped; the gateway rejects zero quantities.
		if !line.Quantity.IsPositive() {
			continue
		}
		measure := gateway.MeasurePiece
		if line.Weighted() {
			measure = gateway.MeasureKilogram
		}
		items = append(items, gateway.ReceiptItem{
			Description:    truncateDescription(line.Name),
			Quantity:       line.Quantity.StringFixed(3),
			Amount:         gateway.NewAmount(line.Price),
			VatCode:        gateway.VatNone,
			PaymentMode:    mode,
			PaymentSubject: gateway.SubjectCommodity,
			Measure:        measure,
		})
	}
	return items
}

func serviceReceiptItem(name string, amount decimal.Decimal, mode string) gateway.ReceiptItem {
	return gateway.ReceiptItem{
		Description:    name,
		Quantity:       "1.000",
		Amount:         gateway.NewAmount(amount),
		VatCode:        gateway.VatNone,
		PaymentMode:    mode,
		PaymentSubject: gateway.SubjectService,
		Measure:        gateway.MeasurePiece,
	}
}

// The gateway limits item descriptions to 128 characters.
func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) > 128 {
		return string(r[:128])
	}
	return s
}
