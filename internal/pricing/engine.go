// Package pricing turns order lines into a totals breakdown. All amounts
// are integer rials, tax is expressed in basis points.
package pricing

// Money is a monetary amount in minor currency units.
type Money = int64

// Item is one priced line: quantity times the unit price, where the unit
// price already folds in variant deltas and add-ons.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary is the totals breakdown shown on carts and stored on orders.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Shipping Money
	Total    Money
}

func subtotalOf(items []Item) Money {
	var sum Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		sum += Money(it.Qty) * it.UnitPrice
	}
	return sum
}

// Compute builds a Summary from line items, an already-resolved coupon
// discount, a tax rate in basis points and a delivery fee. The discount is
// clamped to the subtotal and tax applies to the discounted amount, so the
// result never goes negative. The delivery fee is taxed separately by
// policy, meaning not at all.
func Compute(items []Item, discount Money, taxBps int, shipping Money) Summary {
	subtotal := subtotalOf(items)
	if discount > subtotal {
		discount = subtotal
	}
	taxable := subtotal - discount
	tax := taxable * Money(taxBps) / 10000
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable + tax + shipping,
	}
}
