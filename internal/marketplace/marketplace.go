package marketplace

import (
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/trader"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var PermissionID = ledger.IntegerID(1)

// Seller is the purchase entry point of a trader account.
type Seller interface {
	Purchase(tx *ledger.Tx, id ledger.GlobalID, payment *ledger.Bucket, permission *ledger.Proof, recipient *ledger.Account) (*trader.PurchaseResult, error)
}

// PreviewMinter sells freshly minted assets. It receives the payment left
// after the mint fee and a proof of the marketplace permission.
type PreviewMinter interface {
	ledger.Component
	PurchasePreviewMint(tx *ledger.Tx, payment *ledger.Bucket, account *ledger.Account, permission *ledger.Proof) ([]*ledger.Bucket, error)
}

// Marketplace buys listings on behalf of its users and keeps a fee per
// currency. Its permission badge carries the fee rate as metadata so trader
// accounts can read it during a purchase.
type Marketplace struct {
	address ledger.Address
	name    string

	admin      *ledger.ResourceManager
	permission *ledger.ResourceManager
	permits    *ledger.Vault

	feeRate   *ledger.Cell[decimal.Decimal]
	mintFee   *ledger.Cell[decimal.Decimal]
	feeVaults *ledger.KeyValueStore[ledger.Address, *ledger.Vault]
}

// Start creates a marketplace and returns its admin badge.
func Start(tx *ledger.Tx, name string, feeRate, mintFee decimal.Decimal) (*Marketplace, *ledger.Bucket, error) {
	if !entity.IsRate(feeRate) {
		return nil, nil, ledger.Invalid("marketplace fee %s must be between 0 and 1", feeRate)
	}
	if !entity.IsRate(mintFee) {
		return nil, nil, ledger.Invalid("mint fee %s must be between 0 and 1", mintFee)
	}

	m := &Marketplace{
		address:   tx.AllocateAddress(ledger.KindComponent),
		name:      name,
		feeRate:   ledger.NewCell(feeRate),
		mintFee:   ledger.NewCell(mintFee),
		feeVaults: ledger.NewKeyValueStore[ledger.Address, *ledger.Vault](),
	}

	var adminKey *ledger.Bucket
	err := tx.Call(m.address, func() error {
		var err error
		if m.admin, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": name + " Admin"},
		}); err != nil {
			return err
		}
		if adminKey, err = m.admin.MintNonFungible(tx, ledger.IntegerID(1)); err != nil {
			return err
		}

		if m.permission, err = tx.NewResource(ledger.ResourceSpec{
			Type: ledger.NonFungible,
			Metadata: map[string]interface{}{
				"name":                         name,
				entity.MarketplaceFeeMetadata:  feeRate,
				entity.MarketplaceAddrMetadata: m.address,
			},
		}); err != nil {
			return err
		}
		permit, err := m.permission.MintNonFungible(tx, PermissionID)
		if err != nil {
			return err
		}
		m.permits, err = ledger.VaultWithBucket(tx, permit)

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Register(m); err != nil {
		return nil, nil, err
	}

	zap.L().With(
		zap.String("marketplace", m.address.String()),
		zap.String("name", name),
		zap.String("fee", feeRate.String()),
		zap.String("mintFee", mintFee.String()),
	).Info("Marketplace: Started")

	return m, adminKey, nil
}

func (m *Marketplace) Address() ledger.Address {
	return m.address
}

func (m *Marketplace) Name() string {
	return m.name
}

// PermissionResource is the badge sellers add to a listing to let this
// marketplace buy it.
func (m *Marketplace) PermissionResource() ledger.Address {
	return m.permission.Address()
}

func (m *Marketplace) AdminBadge() ledger.GlobalID {
	return ledger.NewGlobalID(m.admin.Address(), ledger.IntegerID(1))
}

func (m *Marketplace) FeeRate() decimal.Decimal {
	return m.feeRate.Get()
}

func (m *Marketplace) MintFee() decimal.Decimal {
	return m.mintFee.Get()
}

func (m *Marketplace) FeeBalance(currency ledger.Address) decimal.Decimal {
	if v, ok := m.feeVaults.Get(currency); ok {
		return v.Amount()
	}

	return decimal.Zero
}

func (m *Marketplace) FeeBalances() map[ledger.Address]decimal.Decimal {
	out := make(map[ledger.Address]decimal.Decimal)
	m.feeVaults.Range(func(currency ledger.Address, v *ledger.Vault) bool {
		out[currency] = v.Amount()
		return true
	})

	return out
}

// PurchaseRoyalListing buys listing id from seller for recipient. The
// marketplace keeps its fee and hands the receipt back to the caller.
func (m *Marketplace) PurchaseRoyalListing(
	tx *ledger.Tx,
	id ledger.GlobalID,
	payment *ledger.Bucket,
	seller Seller,
	recipient *ledger.Account,
) ([]*ledger.Bucket, error) {
	var out []*ledger.Bucket

	err := tx.Call(m.address, func() error {
		permission, err := m.permits.CreateProofOfNonFungibles(tx, PermissionID)
		if err != nil {
			return err
		}

		result, err := seller.Purchase(tx, id, payment, permission, recipient)
		if err != nil {
			return err
		}
		if result.MarketplaceFee != nil {
			if err := m.keep(tx, result.MarketplaceFee); err != nil {
				return err
			}
		}
		out = append(out, result.Receipt)

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("marketplace", m.address.String()), zap.String("asset", id.String())).
		Info("Marketplace: Listing purchased")

	return out, nil
}

// PurchasePreviewMint takes the mint fee out of payment and forwards the rest
// to minter.
func (m *Marketplace) PurchasePreviewMint(tx *ledger.Tx, payment *ledger.Bucket, account *ledger.Account, minter PreviewMinter) ([]*ledger.Bucket, error) {
	var out []*ledger.Bucket

	err := tx.Call(m.address, func() error {
		fee, err := payment.TakeAdvanced(payment.Amount().Mul(m.mintFee.Get()))
		if err != nil {
			return err
		}
		if err := m.keep(tx, fee); err != nil {
			return err
		}

		permission, err := m.permits.CreateProofOfNonFungibles(tx, PermissionID)
		if err != nil {
			return err
		}

		return tx.Call(minter.Address(), func() error {
			if out, err = minter.PurchasePreviewMint(tx, payment, account, permission); err != nil {
				return ledger.External(err, "preview mint %s", minter.Address())
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// WithdrawFees empties the fee vault of currency.
func (m *Marketplace) WithdrawFees(tx *ledger.Tx, admin *ledger.Proof, currency ledger.Address) (*ledger.Bucket, error) {
	var out *ledger.Bucket

	err := tx.Call(m.address, func() error {
		if err := admin.CheckNonFungible(tx, m.AdminBadge()); err != nil {
			return err
		}

		v, ok := m.feeVaults.Get(currency)
		if !ok {
			return ledger.NotFound("no fees collected in %s", currency)
		}
		out = v.TakeAll(tx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("marketplace", m.address.String()), zap.String("amount", out.Amount().String())).
		Info("Marketplace: Fees withdrawn")

	return out, nil
}

// SetFeeRate changes the fee rate published on the permission badge.
func (m *Marketplace) SetFeeRate(tx *ledger.Tx, admin *ledger.Proof, rate decimal.Decimal) error {
	return tx.Call(m.address, func() error {
		if err := admin.CheckNonFungible(tx, m.AdminBadge()); err != nil {
			return err
		}
		if !entity.IsRate(rate) {
			return ledger.Invalid("marketplace fee %s must be between 0 and 1", rate)
		}
		if err := m.permission.SetMetadata(tx, entity.MarketplaceFeeMetadata, rate); err != nil {
			return err
		}
		m.feeRate.Set(tx, rate)

		zap.L().With(zap.String("marketplace", m.address.String()), zap.String("fee", rate.String())).
			Info("Marketplace: Fee rate changed")

		return nil
	})
}

func (m *Marketplace) keep(tx *ledger.Tx, fee *ledger.Bucket) error {
	if fee.IsEmpty() {
		return nil
	}
	if v, ok := m.feeVaults.Get(fee.Resource()); ok {
		return v.Put(tx, fee)
	}

	v, err := ledger.VaultWithBucket(tx, fee)
	if err != nil {
		return err
	}
	m.feeVaults.Insert(tx, fee.Resource(), v)

	return nil
}
