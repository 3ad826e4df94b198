package types

import "strings"

// Money is a catalog price in the smallest currency unit, as reported by the
// payment platform. The module carries it through untouched; formatting for
// display is left to the caller.
type Money struct {
	Amount   int64  `json:"amount"   yaml:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency" yaml:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// Price creates a Money value, normalising the currency code to lowercase.
func Price(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// IsZero reports whether no price is set.
func (m Money) IsZero() bool { return m.Amount == 0 && m.Currency == "" }

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && strings.EqualFold(m.Currency, other.Currency)
}
