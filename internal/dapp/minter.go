package dapp

import (
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Minter sells new assets of its own collection at a fixed price. Only
// holders of a trusted permission badge, such as a marketplace, may buy.
type Minter struct {
	address  ledger.Address
	resource *ledger.ResourceManager
	currency ledger.Address
	price    decimal.Decimal
	trusted  ledger.Address

	next     *ledger.Cell[uint64]
	proceeds *ledger.Vault
}

func NewMinter(tx *ledger.Tx, name string, currency ledger.Address, price decimal.Decimal, trusted ledger.Address) (*Minter, error) {
	if !price.IsPositive() {
		return nil, ledger.Invalid("mint price must be greater than zero")
	}
	rm, ok := tx.Resource(currency)
	if !ok {
		return nil, ledger.NotFound("currency %s", currency)
	}

	m := &Minter{
		address:  tx.AllocateAddress(ledger.KindComponent),
		currency: currency,
		price:    price,
		trusted:  trusted,
		next:     ledger.NewCell[uint64](1),
		proceeds: ledger.NewVault(rm),
	}

	err := tx.Call(m.address, func() error {
		var err error
		m.resource, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": name, "preview": "true"},
		})

		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Register(m); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Minter) Address() ledger.Address {
	return m.address
}

func (m *Minter) Resource() ledger.Address {
	return m.resource.Address()
}

func (m *Minter) Proceeds() decimal.Decimal {
	return m.proceeds.Amount()
}

// PurchasePreviewMint mints the next asset into account and returns the
// change.
func (m *Minter) PurchasePreviewMint(tx *ledger.Tx, payment *ledger.Bucket, account *ledger.Account, permission *ledger.Proof) ([]*ledger.Bucket, error) {
	var change *ledger.Bucket

	err := tx.Call(m.address, func() error {
		if err := permission.Check(tx, m.trusted); err != nil {
			return err
		}
		if payment.Resource() != m.currency {
			return ledger.Invalid("preview mint: payment in %s, price is in %s", payment.Resource(), m.currency)
		}

		cost, err := payment.Take(m.price)
		if err != nil {
			return err
		}
		if err := m.proceeds.Put(tx, cost); err != nil {
			return err
		}

		n := m.next.Get()
		minted, err := m.resource.MintNonFungible(tx, ledger.IntegerID(n))
		if err != nil {
			return err
		}
		m.next.Set(tx, n+1)

		if err := account.Deposit(tx, minted); err != nil {
			return err
		}
		change = payment

		zap.L().With(zap.String("minter", m.address.String()), zap.Uint64("id", n)).Info("Minter: Preview minted")

		return nil
	})
	if err != nil {
		return nil, err
	}

	return []*ledger.Bucket{change}, nil
}
