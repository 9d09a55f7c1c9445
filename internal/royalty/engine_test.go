package royalty

import (
	"context"
	"errors"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
	"testing"
)

type world struct {
	ledger   *ledger.Ledger
	engine   *Engine
	creator  *ledger.Account
	buyer    *ledger.Account
	currency ledger.Address
}

func newWorld(t *testing.T, cfg entity.RoyaltyConfig) *world {
	t.Helper()

	w := &world{ledger: ledger.New()}
	w.mustExec(t, func(tx *ledger.Tx) error {
		var err error
		if w.creator, err = ledger.NewAccount(tx, "creator"); err != nil {
			return err
		}
		if w.buyer, err = ledger.NewAccount(tx, "buyer"); err != nil {
			return err
		}

		rm, funds, err := tx.NewResourceWithSupply(ledger.ResourceSpec{Type: ledger.Fungible, Divisibility: 2}, decimal.NewFromInt(1000000000))
		if err != nil {
			return err
		}
		w.currency = rm.Address()
		if err := w.buyer.Deposit(tx, funds); err != nil {
			return err
		}

		_, badge, err := tx.NewResourceWithSupply(ledger.ResourceSpec{Type: ledger.Fungible}, decimal.NewFromInt(1))
		if err != nil {
			return err
		}

		var key *ledger.Bucket
		w.engine, key, err = NewCollection(tx, CollectionSpec{
			Name:          "Test Collection",
			DepositBypass: badge.Resource(),
			Config:        cfg,
		})
		if err != nil {
			return err
		}

		return w.creator.DepositAll(tx, key, badge)
	})

	return w
}

func (w *world) exec(fn func(tx *ledger.Tx) error) error {
	_, err := w.ledger.Execute(context.Background(), []ledger.Identity{"creator", "buyer"}, fn)
	return err
}

func (w *world) mustExec(t *testing.T, fn func(tx *ledger.Tx) error) {
	t.Helper()

	if err := w.exec(fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func (w *world) asCreator(fn func(tx *ledger.Tx, creator *ledger.Proof) error) error {
	return w.exec(func(tx *ledger.Tx) error {
		proof, err := w.creator.CreateProofOfNonFungibles(tx, w.engine.CreatorKey())
		if err != nil {
			return err
		}
		return fn(tx, proof)
	})
}

func (w *world) pay(amount decimal.Decimal) (decimal.Decimal, error) {
	var remainder decimal.Decimal
	err := w.exec(func(tx *ledger.Tx) error {
		payment, err := w.buyer.Withdraw(tx, w.currency, amount)
		if err != nil {
			return err
		}
		rest, err := w.engine.PayRoyalty(tx, w.engine.Collection(), payment, "resource_buyer")
		if err != nil {
			return err
		}
		remainder = rest.Amount()

		return w.buyer.Deposit(tx, rest)
	})

	return remainder, err
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPayRoyaltyIsExact(t *testing.T) {
	amounts := []string{"100", "99", "1", "0.01", "0.07", "12345.67"}
	rates := []string{"0", "0.05", "0.333", "0.5", "1"}

	for _, rate := range rates {
		w := newWorld(t, entity.NewRoyaltyConfig(d(rate), d("1")))

		for _, amount := range amounts {
			t.Run(fmt.Sprintf("%s@%s", amount, rate), func(t *testing.T) {
				before := w.engine.RoyaltyBalance(w.currency)

				remainder, err := w.pay(d(amount))
				if err != nil {
					t.Fatalf("pay royalty failed: %v", err)
				}

				royalty := w.engine.RoyaltyBalance(w.currency).Sub(before)
				expected := d(amount).Mul(d(rate)).Truncate(2)
				if !royalty.Equal(expected) {
					t.Errorf("expected royalty %s, got %s", expected, royalty)
				}
				if !royalty.Add(remainder).Equal(d(amount)) {
					t.Errorf("royalty %s + remainder %s != %s", royalty, remainder, amount)
				}
			})
		}
	}
}

func TestPayRoyaltyRestrictions(t *testing.T) {
	t.Run("buyer not permitted", func(t *testing.T) {
		cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
		cfg.LimitBuyers = true
		w := newWorld(t, cfg)

		if _, err := w.pay(d("10")); !errors.Is(err, ledger.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	t.Run("currency not permitted", func(t *testing.T) {
		cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
		cfg.LimitCurrencies = true
		w := newWorld(t, cfg)

		if _, err := w.pay(d("10")); !errors.Is(err, ledger.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if !w.buyer.Balance(w.currency).Equal(d("1000000000")) {
			t.Errorf("buyer balance changed: %s", w.buyer.Balance(w.currency))
		}
	})

	t.Run("below minimum royalty", func(t *testing.T) {
		cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
		w := newWorld(t, cfg)

		err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
			if err := w.engine.RestrictCurrencies(tx, p); err != nil {
				return err
			}
			if err := w.engine.AddPermittedCurrency(tx, p, w.currency); err != nil {
				return err
			}
			if err := w.engine.EnableMinimumRoyalties(tx, p); err != nil {
				return err
			}
			return w.engine.SetMinimumRoyaltyAmount(tx, p, w.currency, d("1"))
		})
		if err != nil {
			t.Fatalf("configuration failed: %v", err)
		}

		if _, err := w.pay(d("10")); !errors.Is(err, ledger.ErrValidation) {
			t.Fatalf("expected royalty 0.5 below minimum 1 to fail, got %v", err)
		}
		if _, err := w.pay(d("20")); err != nil {
			t.Fatalf("expected royalty 1 to satisfy minimum, got %v", err)
		}
	})

	t.Run("currency without a minimum", func(t *testing.T) {
		w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

		err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
			if err := w.engine.RestrictCurrencies(tx, p); err != nil {
				return err
			}
			if err := w.engine.AddPermittedCurrency(tx, p, w.currency); err != nil {
				return err
			}
			return w.engine.EnableMinimumRoyalties(tx, p)
		})
		if err != nil {
			t.Fatalf("configuration failed: %v", err)
		}

		if _, err := w.pay(d("100")); !errors.Is(err, ledger.ErrValidation) {
			t.Fatalf("expected a currency with no minimum to be refused, got %v", err)
		}
		if balance := w.engine.RoyaltyBalance(w.currency); !balance.IsZero() {
			t.Errorf("refused payment reached the vault: %s", balance)
		}
	})

	t.Run("foreign asset", func(t *testing.T) {
		w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

		err := w.exec(func(tx *ledger.Tx) error {
			payment, err := w.buyer.Withdraw(tx, w.currency, d("1"))
			if err != nil {
				return err
			}
			_, err = w.engine.PayRoyalty(tx, w.currency, payment, "")
			return err
		})
		if !errors.Is(err, ledger.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestRatchetTable(t *testing.T) {
	for m, direction := range Ratchet {
		if !Permitted(m, false) {
			t.Errorf("%s should be permitted while unlocked", m)
		}
		if Permitted(m, true) != (direction != Narrow) {
			t.Errorf("%s (%s) has wrong locked permission", m, direction)
		}
	}

	if Permitted("unknown_mutation", true) {
		t.Error("unknown mutations must be treated as narrowing")
	}
}

func TestLockedConfigurationRatchet(t *testing.T) {
	other := ledger.Address("resource_other")

	cases := []struct {
		mutation Mutation
		apply    func(e *Engine, tx *ledger.Tx, p *ledger.Proof, currency ledger.Address) error
	}{
		{ChangeRoyaltyPercentage, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.ChangeRoyaltyPercentageFee(tx, p, d("0.01"))
		}},
		{LowerMaximumRoyaltyPercentage, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.LowerMaximumRoyaltyPercentage(tx, p, d("0.06"))
		}},
		{RestrictCurrencies, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.RestrictCurrencies(tx, p)
		}},
		{UnrestrictCurrencies, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.UnrestrictCurrencies(tx, p)
		}},
		{AddPermittedCurrency, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.AddPermittedCurrency(tx, p, other)
		}},
		{RemovePermittedCurrency, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, c ledger.Address) error {
			return e.RemovePermittedCurrency(tx, p, c)
		}},
		{EnableMinimumRoyalties, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.EnableMinimumRoyalties(tx, p)
		}},
		{DisableMinimumRoyalties, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.DisableMinimumRoyalties(tx, p)
		}},
		{SetMinimumRoyaltyAmount, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, c ledger.Address) error {
			return e.SetMinimumRoyaltyAmount(tx, p, c, d("2"))
		}},
		{RemoveMinimumRoyaltyAmount, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, c ledger.Address) error {
			return e.RemoveMinimumRoyaltyAmount(tx, p, c)
		}},
		{LimitDapps, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.LimitDapps(tx, p)
		}},
		{UnlimitDapps, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.UnlimitDapps(tx, p)
		}},
		{AddPermissionedDapp, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.AddPermissionedDapp(tx, p, "component_dapp")
		}},
		{RemovePermissionedDapp, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.RemovePermissionedDapp(tx, p, "component_dapp")
		}},
		{AddPermissionedBuyer, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.AddPermissionedBuyer(tx, p, "resource_newbuyer")
		}},
		{RemovePermissionedBuyer, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.RemovePermissionedBuyer(tx, p, "resource_buyer")
		}},
		{DenyAllBuyers, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.DenyAllBuyers(tx, p)
		}},
		{AllowAllBuyers, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.AllowAllBuyers(tx, p)
		}},
		{LockConfiguration, func(e *Engine, tx *ledger.Tx, p *ledger.Proof, _ ledger.Address) error {
			return e.LockRoyaltyConfiguration(tx, p)
		}},
	}

	if len(cases) != len(Ratchet) {
		t.Fatalf("expected a case for each of the %d mutations, got %d", len(Ratchet), len(cases))
	}

	for _, c := range cases {
		t.Run(string(c.mutation), func(t *testing.T) {
			cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
			cfg.LimitCurrencies = true
			cfg.MinimumRoyalties = true
			cfg.LimitDapps = true
			cfg.PermissionedDapps["component_dapp"] = true
			cfg.PermissionedBuyers["resource_buyer"] = true
			w := newWorld(t, cfg)

			err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
				if err := w.engine.AddPermittedCurrency(tx, p, w.currency); err != nil {
					return err
				}
				if err := w.engine.SetMinimumRoyaltyAmount(tx, p, w.currency, d("1")); err != nil {
					return err
				}
				return w.engine.LockRoyaltyConfiguration(tx, p)
			})
			if err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			before := w.engine.Config()
			err = w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
				return c.apply(w.engine, tx, p, w.currency)
			})

			if Ratchet[c.mutation] == Narrow {
				if !errors.Is(err, ledger.ErrConfigLocked) {
					t.Fatalf("expected config locked, got %v", err)
				}
				if !before.RoyaltyPercent.Equal(w.engine.Config().RoyaltyPercent) {
					t.Error("refused mutation changed the configuration")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected %s to be permitted while locked, got %v", c.mutation, err)
			}
			if !w.engine.Config().Locked {
				t.Error("configuration unlocked")
			}
		})
	}
}

func TestChangeRoyaltyPercentageFee(t *testing.T) {
	w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

	err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		return w.engine.ChangeRoyaltyPercentageFee(tx, p, d("0.2"))
	})
	if !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected percentage above maximum to fail, got %v", err)
	}

	err = w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		return w.engine.ChangeRoyaltyPercentageFee(tx, p, d("0.08"))
	})
	if err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if !w.engine.Config().RoyaltyPercent.Equal(d("0.08")) {
		t.Errorf("expected 0.08, got %s", w.engine.Config().RoyaltyPercent)
	}
}

func TestLowerMaximumRoyaltyPercentage(t *testing.T) {
	w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

	cases := map[string]error{
		"0.04": ledger.ErrValidation,
		"0.2":  ledger.ErrValidation,
		"0.05": nil,
	}
	for pct, expected := range cases {
		err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
			return w.engine.LowerMaximumRoyaltyPercentage(tx, p, d(pct))
		})
		if expected == nil && err != nil {
			t.Errorf("%s: unexpected error %v", pct, err)
		}
		if expected != nil && !errors.Is(err, expected) {
			t.Errorf("%s: expected %v, got %v", pct, expected, err)
		}
	}
}

func TestLockIsIdempotent(t *testing.T) {
	w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

	for i := 0; i < 2; i++ {
		err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
			return w.engine.LockRoyaltyConfiguration(tx, p)
		})
		if err != nil {
			t.Fatalf("lock %d failed: %v", i, err)
		}
	}

	if !w.engine.Config().Locked {
		t.Fatal("expected locked configuration")
	}

	err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		return w.engine.ChangeRoyaltyPercentageFee(tx, p, d("0.01"))
	})
	if !errors.Is(err, ledger.ErrConfigLocked) {
		t.Errorf("expected config locked, got %v", err)
	}
	err = w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		return w.engine.LowerMaximumRoyaltyPercentage(tx, p, d("0.07"))
	})
	if err != nil {
		t.Errorf("expected lowering the maximum to succeed, got %v", err)
	}
}

func TestMutationRequiresCreatorKey(t *testing.T) {
	w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

	err := w.exec(func(tx *ledger.Tx) error {
		proof, err := w.buyer.CreateProofOfAmount(tx, w.currency, d("1"))
		if err != nil {
			return err
		}
		return w.engine.LockRoyaltyConfiguration(tx, proof)
	})
	if !errors.Is(err, ledger.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

type holder struct {
	address ledger.Address
	vault   *ledger.Vault
	refuse  bool
}

func (h *holder) Address() ledger.Address {
	return h.address
}

func (h *holder) Invoke(tx *ledger.Tx, method string, asset *ledger.Bucket) ([]*ledger.Bucket, error) {
	if h.refuse {
		return nil, errors.New("refused")
	}
	if h.vault == nil {
		h.vault = ledger.NewVault(asset.ResourceManager())
	}

	return nil, h.vault.Put(tx, asset)
}

// gifter deposits whatever it receives into an end-user account.
type gifter struct {
	address ledger.Address
	to      *ledger.Account
}

func (g *gifter) Address() ledger.Address {
	return g.address
}

func (g *gifter) Invoke(tx *ledger.Tx, _ string, asset *ledger.Bucket) ([]*ledger.Bucket, error) {
	return nil, g.to.Deposit(tx, asset)
}

func (w *world) mintAndRegister(t *testing.T, h *holder) ledger.GlobalID {
	t.Helper()

	id := ledger.NewGlobalID(w.engine.Collection(), ledger.IntegerID(1))
	err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		h.address = tx.AllocateAddress(ledger.KindComponent)
		if err := tx.Register(h); err != nil {
			return err
		}
		return w.engine.DirectMint(tx, p, w.creator, id.Local)
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	return id
}

func (w *world) transfer(id ledger.GlobalID, target ledger.ExternalComponent) error {
	return w.exec(func(tx *ledger.Tx) error {
		asset, err := w.creator.WithdrawNonFungible(tx, id)
		if err != nil {
			return err
		}
		_, err = w.engine.TransferToDapp(tx, asset, target, "deposit")
		return err
	})
}

func TestTransferToDapp(t *testing.T) {
	t.Run("unrestricted", func(t *testing.T) {
		w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))
		h := &holder{}
		id := w.mintAndRegister(t, h)

		if err := w.transfer(id, h); err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
		if h.vault == nil || !h.vault.Contains(id.Local) {
			t.Error("dapp should hold the asset")
		}
	})

	t.Run("dapp not permissioned", func(t *testing.T) {
		cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
		cfg.LimitDapps = true
		w := newWorld(t, cfg)
		h := &holder{}
		id := w.mintAndRegister(t, h)

		if err := w.transfer(id, h); !errors.Is(err, ledger.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
		if !w.creator.Holds(id) {
			t.Error("asset should remain with the creator")
		}
	})

	t.Run("account disguised as dapp", func(t *testing.T) {
		w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))
		h := &holder{}
		id := w.mintAndRegister(t, h)

		disguised := &holder{address: w.buyer.Address()}
		if err := w.transfer(id, disguised); !errors.Is(err, ledger.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	t.Run("impostor at a permissioned dapp address", func(t *testing.T) {
		cfg := entity.NewRoyaltyConfig(d("0.05"), d("0.1"))
		cfg.LimitDapps = true
		w := newWorld(t, cfg)
		h := &holder{}
		id := w.mintAndRegister(t, h)
		if err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
			return w.engine.AddPermissionedDapp(tx, p, h.address)
		}); err != nil {
			t.Fatalf("permission failed: %v", err)
		}

		impostor := &gifter{address: h.address, to: w.buyer}
		if err := w.transfer(id, impostor); !errors.Is(err, ledger.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
		if w.buyer.Holds(id) || !w.creator.Holds(id) {
			t.Error("asset should remain with the creator")
		}

		unregistered := &holder{address: "component_unregistered"}
		if err := w.transfer(id, unregistered); !errors.Is(err, ledger.ErrPermissionDenied) {
			t.Fatalf("expected an unregistered target to be denied, got %v", err)
		}
	})

	t.Run("dapp failure", func(t *testing.T) {
		w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))
		h := &holder{refuse: true}
		id := w.mintAndRegister(t, h)

		if err := w.transfer(id, h); !errors.Is(err, ledger.ErrExternalCall) {
			t.Fatalf("expected external call error, got %v", err)
		}
		if !w.creator.Holds(id) {
			t.Error("asset should remain with the creator")
		}
	})
}

func TestWithdrawRoyalties(t *testing.T) {
	w := newWorld(t, entity.NewRoyaltyConfig(d("0.05"), d("0.1")))

	if _, err := w.pay(d("100")); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	err := w.asCreator(func(tx *ledger.Tx, p *ledger.Proof) error {
		royalties, err := w.engine.WithdrawRoyalties(tx, p, w.currency)
		if err != nil {
			return err
		}
		return w.creator.Deposit(tx, royalties)
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if !w.creator.Balance(w.currency).Equal(d("5")) {
		t.Errorf("expected creator to hold 5, got %s", w.creator.Balance(w.currency))
	}
	if !w.engine.RoyaltyBalance(w.currency).IsZero() {
		t.Errorf("expected empty royalty vault, got %s", w.engine.RoyaltyBalance(w.currency))
	}
}
