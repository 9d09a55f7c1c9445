package entity

import (
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
)

// RoyaltyConfig is the royalty policy of one collection.
type RoyaltyConfig struct {
	RoyaltyPercent        decimal.Decimal `json:"royaltyPercent"`
	MaximumRoyaltyPercent decimal.Decimal `json:"maximumRoyaltyPercent"`

	LimitCurrencies       bool                                `json:"limitCurrencies"`
	PermittedCurrencies   map[ledger.Address]bool             `json:"permittedCurrencies"`
	MinimumRoyalties      bool                                `json:"minimumRoyalties"`
	MinimumRoyaltyAmounts map[ledger.Address]decimal.Decimal `json:"minimumRoyaltyAmounts"`

	LimitDapps        bool                    `json:"limitDapps"`
	PermissionedDapps map[ledger.Address]bool `json:"permissionedDapps"`

	LimitBuyers        bool                    `json:"limitBuyers"`
	PermissionedBuyers map[ledger.Address]bool `json:"permissionedBuyers"`

	Locked bool `json:"locked"`
}

func NewRoyaltyConfig(royalty, maximum decimal.Decimal) RoyaltyConfig {
	return RoyaltyConfig{
		RoyaltyPercent:        royalty,
		MaximumRoyaltyPercent: maximum,
		PermittedCurrencies:   make(map[ledger.Address]bool),
		MinimumRoyaltyAmounts: make(map[ledger.Address]decimal.Decimal),
		PermissionedDapps:     make(map[ledger.Address]bool),
		PermissionedBuyers:    make(map[ledger.Address]bool),
	}
}

func (c RoyaltyConfig) Clone() RoyaltyConfig {
	out := c
	out.PermittedCurrencies = make(map[ledger.Address]bool, len(c.PermittedCurrencies))
	for k, v := range c.PermittedCurrencies {
		out.PermittedCurrencies[k] = v
	}
	out.MinimumRoyaltyAmounts = make(map[ledger.Address]decimal.Decimal, len(c.MinimumRoyaltyAmounts))
	for k, v := range c.MinimumRoyaltyAmounts {
		out.MinimumRoyaltyAmounts[k] = v
	}
	out.PermissionedDapps = make(map[ledger.Address]bool, len(c.PermissionedDapps))
	for k, v := range c.PermissionedDapps {
		out.PermissionedDapps[k] = v
	}
	out.PermissionedBuyers = make(map[ledger.Address]bool, len(c.PermissionedBuyers))
	for k, v := range c.PermissionedBuyers {
		out.PermissionedBuyers[k] = v
	}

	return out
}

func (c RoyaltyConfig) Validate() error {
	if !IsRate(c.RoyaltyPercent) {
		return ledger.Invalid("royalty percent %s must be between 0 and 1", c.RoyaltyPercent)
	}
	if !IsRate(c.MaximumRoyaltyPercent) {
		return ledger.Invalid("maximum royalty percent %s must be between 0 and 1", c.MaximumRoyaltyPercent)
	}
	if c.RoyaltyPercent.GreaterThan(c.MaximumRoyaltyPercent) {
		return ledger.Invalid("royalty percent %s exceeds maximum %s", c.RoyaltyPercent, c.MaximumRoyaltyPercent)
	}
	for currency, amount := range c.MinimumRoyaltyAmounts {
		if amount.IsNegative() {
			return ledger.Invalid("minimum royalty for %s is negative", currency)
		}
	}

	return nil
}

// IsRate reports whether d is within [0, 1].
func IsRate(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}
