package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a supported ISO 4217 currency code.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyCHF Currency = "CHF"
	CurrencyCNY Currency = "CNY"
	CurrencyINR Currency = "INR"
	CurrencyBRL Currency = "BRL"
)

// SupportedCurrencies returns the set of currencies accounts may hold.
func SupportedCurrencies() map[Currency]bool {
	return map[Currency]bool{
		CurrencyUSD: true,
		CurrencyEUR: true,
		CurrencyGBP: true,
		CurrencyJPY: true,
		CurrencyCAD: true,
		CurrencyAUD: true,
		CurrencyCHF: true,
		CurrencyCNY: true,
		CurrencyINR: true,
		CurrencyBRL: true,
	}
}

// Valid reports whether c is a supported currency code.
func (c Currency) Valid() bool {
	return SupportedCurrencies()[c]
}

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
	AccountPending   AccountStatus = "PENDING"
)

// Account is a snapshot of an account record as read from the store.
// The executor never mutates a snapshot in place: balance changes produce
// fresh snapshots via applyTransfer, and only those are persisted. The
// AccountID doubles as the distributed lock key for the account.
type Account struct {
	AccountID  string          `json:"account_id"`
	OwnerID    string          `json:"owner_id"`
	HolderName string          `json:"holder_name"`
	Balance    decimal.Decimal `json:"balance"`
	Currency   Currency        `json:"currency"`
	Status     AccountStatus   `json:"status"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone returns a copy of the account snapshot.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// HasSufficientFunds reports whether the balance covers amount.
func (a *Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
