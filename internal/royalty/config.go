package royalty

import (
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (e *Engine) ChangeRoyaltyPercentageFee(tx *ledger.Tx, creator *ledger.Proof, pct decimal.Decimal) error {
	return e.mutate(tx, creator, ChangeRoyaltyPercentage, func(cfg *entity.RoyaltyConfig) error {
		if !entity.IsRate(pct) {
			return ledger.Invalid("royalty percent %s must be between 0 and 1", pct)
		}
		if pct.GreaterThan(cfg.MaximumRoyaltyPercent) {
			return ledger.Invalid("royalty percent %s exceeds maximum %s", pct, cfg.MaximumRoyaltyPercent)
		}
		cfg.RoyaltyPercent = pct

		return nil
	})
}

func (e *Engine) LowerMaximumRoyaltyPercentage(tx *ledger.Tx, creator *ledger.Proof, pct decimal.Decimal) error {
	return e.mutate(tx, creator, LowerMaximumRoyaltyPercentage, func(cfg *entity.RoyaltyConfig) error {
		if pct.LessThan(cfg.RoyaltyPercent) {
			return ledger.Invalid("maximum %s is below the current royalty percent %s", pct, cfg.RoyaltyPercent)
		}
		if pct.GreaterThan(cfg.MaximumRoyaltyPercent) {
			return ledger.Invalid("maximum can only be lowered, %s exceeds %s", pct, cfg.MaximumRoyaltyPercent)
		}
		cfg.MaximumRoyaltyPercent = pct

		return nil
	})
}

func (e *Engine) RestrictCurrencies(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, RestrictCurrencies, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitCurrencies = true
		return nil
	})
}

func (e *Engine) UnrestrictCurrencies(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, UnrestrictCurrencies, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitCurrencies = false
		return nil
	})
}

func (e *Engine) AddPermittedCurrency(tx *ledger.Tx, creator *ledger.Proof, currency ledger.Address) error {
	return e.mutate(tx, creator, AddPermittedCurrency, func(cfg *entity.RoyaltyConfig) error {
		if err := requireLimitedCurrencies(cfg); err != nil {
			return err
		}
		cfg.PermittedCurrencies[currency] = true

		return nil
	})
}

func (e *Engine) RemovePermittedCurrency(tx *ledger.Tx, creator *ledger.Proof, currency ledger.Address) error {
	return e.mutate(tx, creator, RemovePermittedCurrency, func(cfg *entity.RoyaltyConfig) error {
		if err := requireLimitedCurrencies(cfg); err != nil {
			return err
		}
		delete(cfg.PermittedCurrencies, currency)

		return nil
	})
}

func (e *Engine) EnableMinimumRoyalties(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, EnableMinimumRoyalties, func(cfg *entity.RoyaltyConfig) error {
		if err := requireLimitedCurrencies(cfg); err != nil {
			return err
		}
		cfg.MinimumRoyalties = true

		return nil
	})
}

func (e *Engine) DisableMinimumRoyalties(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, DisableMinimumRoyalties, func(cfg *entity.RoyaltyConfig) error {
		cfg.MinimumRoyalties = false
		return nil
	})
}

func (e *Engine) SetMinimumRoyaltyAmount(tx *ledger.Tx, creator *ledger.Proof, currency ledger.Address, amount decimal.Decimal) error {
	return e.mutate(tx, creator, SetMinimumRoyaltyAmount, func(cfg *entity.RoyaltyConfig) error {
		if err := requireLimitedCurrencies(cfg); err != nil {
			return err
		}
		if amount.IsNegative() {
			return ledger.Invalid("minimum royalty %s is negative", amount)
		}
		cfg.MinimumRoyaltyAmounts[currency] = amount

		return nil
	})
}

func (e *Engine) RemoveMinimumRoyaltyAmount(tx *ledger.Tx, creator *ledger.Proof, currency ledger.Address) error {
	return e.mutate(tx, creator, RemoveMinimumRoyaltyAmount, func(cfg *entity.RoyaltyConfig) error {
		if err := requireLimitedCurrencies(cfg); err != nil {
			return err
		}
		delete(cfg.MinimumRoyaltyAmounts, currency)

		return nil
	})
}

func (e *Engine) LimitDapps(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, LimitDapps, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitDapps = true
		return nil
	})
}

func (e *Engine) UnlimitDapps(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, UnlimitDapps, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitDapps = false
		return nil
	})
}

func (e *Engine) AddPermissionedDapp(tx *ledger.Tx, creator *ledger.Proof, dapp ledger.Address) error {
	return e.mutate(tx, creator, AddPermissionedDapp, func(cfg *entity.RoyaltyConfig) error {
		cfg.PermissionedDapps[dapp] = true
		return nil
	})
}

func (e *Engine) RemovePermissionedDapp(tx *ledger.Tx, creator *ledger.Proof, dapp ledger.Address) error {
	return e.mutate(tx, creator, RemovePermissionedDapp, func(cfg *entity.RoyaltyConfig) error {
		delete(cfg.PermissionedDapps, dapp)
		return nil
	})
}

func (e *Engine) AddPermissionedBuyer(tx *ledger.Tx, creator *ledger.Proof, buyer ledger.Address) error {
	return e.mutate(tx, creator, AddPermissionedBuyer, func(cfg *entity.RoyaltyConfig) error {
		cfg.PermissionedBuyers[buyer] = true
		return nil
	})
}

func (e *Engine) RemovePermissionedBuyer(tx *ledger.Tx, creator *ledger.Proof, buyer ledger.Address) error {
	return e.mutate(tx, creator, RemovePermissionedBuyer, func(cfg *entity.RoyaltyConfig) error {
		delete(cfg.PermissionedBuyers, buyer)
		return nil
	})
}

// DenyAllBuyers limits purchases to the permissioned buyers.
func (e *Engine) DenyAllBuyers(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, DenyAllBuyers, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitBuyers = true
		return nil
	})
}

func (e *Engine) AllowAllBuyers(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, AllowAllBuyers, func(cfg *entity.RoyaltyConfig) error {
		cfg.LimitBuyers = false
		return nil
	})
}

// LockRoyaltyConfiguration is one-way. Locking twice is a no-op.
func (e *Engine) LockRoyaltyConfiguration(tx *ledger.Tx, creator *ledger.Proof) error {
	return e.mutate(tx, creator, LockConfiguration, func(cfg *entity.RoyaltyConfig) error {
		cfg.Locked = true
		return nil
	})
}

func (e *Engine) mutate(tx *ledger.Tx, creator *ledger.Proof, m Mutation, apply func(cfg *entity.RoyaltyConfig) error) error {
	return tx.Call(e.address, func() error {
		if err := creator.CheckNonFungible(tx, e.CreatorKey()); err != nil {
			return err
		}

		cfg := e.config.Get().Clone()
		if !Permitted(m, cfg.Locked) {
			return ledger.Locked("%s: royalty configuration is locked", m)
		}
		if err := apply(&cfg); err != nil {
			return err
		}
		e.config.Set(tx, cfg)

		zap.L().With(zap.String("engine", e.address.String()), zap.String("mutation", string(m))).
			Info("Royalty: Configuration updated")

		return nil
	})
}

func requireLimitedCurrencies(cfg *entity.RoyaltyConfig) error {
	if !cfg.LimitCurrencies {
		return ledger.Invalid("currencies are not restricted for this collection")
	}

	return nil
}
