// Package fixture builds a small populated ledger for package tests: a hub,
// a royalty collection, a standard collection, funded accounts and a trader
// account for the seller.
package fixture

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/royalty"
	"github.com/ZilDuck/opentrade/internal/trader"
	"github.com/shopspring/decimal"
	"testing"
)

const (
	CreatorID ledger.Identity = "creator"
	SellerID  ledger.Identity = "seller"
	BuyerID   ledger.Identity = "buyer"
)

type World struct {
	Ledger *ledger.Ledger
	Hub    *trader.Hub

	Creator *ledger.Account
	Seller  *ledger.Account
	Buyer   *ledger.Account

	Trader    *trader.Account
	SellerKey ledger.GlobalID

	Engine   *royalty.Engine
	Standard *ledger.ResourceManager
	Currency ledger.Address

	minter ledger.Address
}

// New builds a world whose royalty collection uses cfg. The buyer holds
// 1,000,000 units of the currency.
func New(t testing.TB, cfg entity.RoyaltyConfig) *World {
	t.Helper()

	w := &World{Ledger: ledger.New()}
	w.MustExec(t, func(tx *ledger.Tx) error {
		var err error
		for _, acc := range []struct {
			target **ledger.Account
			owner  ledger.Identity
		}{{&w.Creator, CreatorID}, {&w.Seller, SellerID}, {&w.Buyer, BuyerID}} {
			if *acc.target, err = ledger.NewAccount(tx, acc.owner); err != nil {
				return err
			}
		}

		hub, admin, err := trader.StartHub(tx)
		if err != nil {
			return err
		}
		w.Hub = hub
		if err := w.Creator.Deposit(tx, admin); err != nil {
			return err
		}

		currency, funds, err := tx.NewResourceWithSupply(ledger.ResourceSpec{
			Type:         ledger.Fungible,
			Divisibility: ledger.MaxDivisibility,
			Metadata:     map[string]interface{}{"name": "Test Token", "symbol": "TT"},
		}, decimal.NewFromInt(1000000))
		if err != nil {
			return err
		}
		w.Currency = currency.Address()
		if err := w.Buyer.Deposit(tx, funds); err != nil {
			return err
		}

		engine, creatorKey, err := royalty.NewCollection(tx, royalty.CollectionSpec{
			Name:          "Royal Ducks",
			Description:   "Ducks that pay their creator",
			IconURL:       "https://example.com/ducks.png",
			DepositBypass: hub.BypassBadge(),
			Config:        cfg,
		})
		if err != nil {
			return err
		}
		w.Engine = engine
		if err := w.Creator.Deposit(tx, creatorKey); err != nil {
			return err
		}

		w.minter = tx.AllocateAddress(ledger.KindComponent)
		if err := tx.Call(w.minter, func() error {
			var err error
			w.Standard, err = tx.NewResource(ledger.ResourceSpec{
				Type:     ledger.NonFungible,
				Metadata: map[string]interface{}{"name": "Plain Ducks"},
			})
			return err
		}); err != nil {
			return err
		}

		account, key, err := hub.CreateTraderAccount(tx, w.Seller)
		if err != nil {
			return err
		}
		w.Trader = account
		w.SellerKey = account.AuthKey()

		return w.Seller.Deposit(tx, key)
	})

	return w
}

func (w *World) Exec(fn func(tx *ledger.Tx) error) error {
	_, err := w.Ledger.Execute(context.Background(), []ledger.Identity{CreatorID, SellerID, BuyerID}, fn)
	return err
}

func (w *World) MustExec(t testing.TB, fn func(tx *ledger.Tx) error) {
	t.Helper()

	if err := w.Exec(fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// SellerAuth proves the seller's trader key.
func (w *World) SellerAuth(tx *ledger.Tx) (*ledger.Proof, error) {
	return w.Seller.CreateProofOfNonFungibles(tx, w.SellerKey)
}

// MintRoyal mints asset #n# of the royalty collection into the seller account.
func (w *World) MintRoyal(t testing.TB, n uint64) ledger.GlobalID {
	t.Helper()

	id := ledger.NewGlobalID(w.Engine.Collection(), ledger.IntegerID(n))
	w.MustExec(t, func(tx *ledger.Tx) error {
		creator, err := w.Creator.CreateProofOfNonFungibles(tx, w.Engine.CreatorKey())
		if err != nil {
			return err
		}
		return w.Engine.DirectMint(tx, creator, w.Seller, id.Local)
	})

	return id
}

// MintStandard mints asset #n# of the standard collection into the seller account.
func (w *World) MintStandard(t testing.TB, n uint64) ledger.GlobalID {
	t.Helper()

	id := ledger.NewGlobalID(w.Standard.Address(), ledger.IntegerID(n))
	w.MustExec(t, func(tx *ledger.Tx) error {
		return tx.Call(w.minter, func() error {
			b, err := w.Standard.MintNonFungible(tx, id.Local)
			if err != nil {
				return err
			}
			return w.Seller.Deposit(tx, b)
		})
	})

	return id
}

// NewBadge creates a single-unit buyer badge held by holder. A non-nil fee
// is attached as the marketplace fee rate.
func (w *World) NewBadge(t testing.TB, holder *ledger.Account, fee *decimal.Decimal) ledger.Address {
	t.Helper()

	var badge ledger.Address
	w.MustExec(t, func(tx *ledger.Tx) error {
		metadata := map[string]interface{}{"name": "Buyer Badge"}
		if fee != nil {
			metadata[entity.MarketplaceFeeMetadata] = *fee
		}

		rm, b, err := tx.NewResourceWithSupply(ledger.ResourceSpec{Type: ledger.Fungible, Metadata: metadata}, decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		badge = rm.Address()

		return holder.Deposit(tx, b)
	})

	return badge
}

// List lists id from the seller account in its own transaction.
func (w *World) List(t testing.TB, id ledger.GlobalID, price decimal.Decimal, permissions ...ledger.Address) {
	t.Helper()

	w.MustExec(t, func(tx *ledger.Tx) error {
		return w.ListIn(tx, id, price, permissions...)
	})
}

// ListIn lists id from the seller account inside tx.
func (w *World) ListIn(tx *ledger.Tx, id ledger.GlobalID, price decimal.Decimal, permissions ...ledger.Address) error {
	auth, err := w.SellerAuth(tx)
	if err != nil {
		return err
	}
	asset, err := w.Seller.WithdrawNonFungible(tx, id)
	if err != nil {
		return err
	}

	return w.Trader.List(tx, auth, asset, price, w.Currency, permissions)
}

// Buy purchases id with amount of the currency, proving badge. The asset and
// receipt go to the buyer, the fee to feeTo.
func (w *World) Buy(tx *ledger.Tx, id ledger.GlobalID, amount decimal.Decimal, badge ledger.Address, feeTo *ledger.Account) (*trader.PurchaseResult, error) {
	payment, err := w.Buyer.Withdraw(tx, w.Currency, amount)
	if err != nil {
		return nil, err
	}
	permission, err := w.Buyer.CreateProofOfAmount(tx, badge, decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}

	result, err := w.Trader.Purchase(tx, id, payment, permission, w.Buyer)
	if err != nil {
		return nil, err
	}
	if err := w.Buyer.Deposit(tx, result.Receipt); err != nil {
		return nil, err
	}
	if result.MarketplaceFee != nil {
		if err := feeTo.Deposit(tx, result.MarketplaceFee); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
