package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a row of the accounts table. Description is nil when the column
// is NULL, which is distinct from an empty description.
type Account struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AccountType string    `json:"account_type"`
	Balance     float64   `json:"balance"`
	Currency    string    `json:"currency"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BalanceDecimal returns the stored balance rounded to cents. The column is a
// REAL, so this is for presentation only.
func (a Account) BalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(a.Balance).Round(2)
}

// NewAccount holds the caller-supplied fields of an account to create.
type NewAccount struct {
	Name        string  `json:"name"`
	AccountType string  `json:"account_type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	Description *string `json:"description"`
}

const DefaultCurrency = "USD"

// Normalize trims whitespace and fills the default currency. A blank
// description is stored as absent.
func (n *NewAccount) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.AccountType = strings.TrimSpace(n.AccountType)
	n.Currency = strings.ToUpper(strings.TrimSpace(n.Currency))
	if n.Currency == "" {
		n.Currency = DefaultCurrency
	}
	if n.Description != nil {
		description := strings.TrimSpace(*n.Description)
		if description == "" {
			n.Description = nil
		} else {
			n.Description = &description
		}
	}
}

func (n NewAccount) Validate() error {
	if n.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if n.AccountType == "" {
		return &ValidationError{Field: "account_type", Reason: "must not be empty"}
	}
	if len(n.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be a three-letter code"}
	}
	for _, r := range n.Currency {
		if r < 'A' || r > 'Z' {
			return &ValidationError{Field: "currency", Reason: "must be a three-letter code"}
		}
	}
	return nil
}
