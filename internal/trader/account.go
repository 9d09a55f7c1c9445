package trader

import (
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/royalty"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Policy settles royalties for a collection. Collections point at theirs
// through their royalty_component metadata.
type Policy interface {
	ledger.Component
	PayRoyalty(tx *ledger.Tx, asset ledger.Address, payment *ledger.Bucket, buyer ledger.Address) (*ledger.Bucket, error)
	TransferToDapp(tx *ledger.Tx, asset *ledger.Bucket, target ledger.ExternalComponent, method string) ([]*ledger.Bucket, error)
}

// Notifier observes the listing lifecycle.
type Notifier interface {
	ListingCreated(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error
	ListingUpdated(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error
	ListingCanceled(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error
	ListingPurchased(tx *ledger.Tx, listing entity.Listing, sale entity.Sale, emitter *ledger.Proof) error
}

// PurchaseResult is what the caller of Purchase gets back. MarketplaceFee is
// nil when the buyer permission carries no fee rate.
type PurchaseResult struct {
	MarketplaceFee *ledger.Bucket
	Receipt        *ledger.Bucket
	Sale           entity.Sale
}

// Account is a seller's escrow. It holds each listed asset in its own vault
// and settles purchases against it.
type Account struct {
	address  ledger.Address
	authKey  ledger.GlobalID
	owner    *ledger.Account
	notifier Notifier

	emitter *ledger.Vault
	bypass  *ledger.Vault

	listings *ledger.KeyValueStore[ledger.GlobalID, entity.Listing]
	vaults   *ledger.KeyValueStore[ledger.GlobalID, *ledger.Vault]
}

type accountConfig struct {
	authKey  ledger.GlobalID
	owner    *ledger.Account
	emitter  *ledger.Bucket
	bypass   *ledger.Bucket
	notifier Notifier
}

func newAccount(tx *ledger.Tx, cfg accountConfig) (*Account, error) {
	a := &Account{
		address:  tx.AllocateAddress(ledger.KindComponent),
		authKey:  cfg.authKey,
		owner:    cfg.owner,
		notifier: cfg.notifier,
		listings: ledger.NewKeyValueStore[ledger.GlobalID, entity.Listing](),
		vaults:   ledger.NewKeyValueStore[ledger.GlobalID, *ledger.Vault](),
	}

	var err error
	if a.emitter, err = ledger.VaultWithBucket(tx, cfg.emitter); err != nil {
		return nil, err
	}
	if a.bypass, err = ledger.VaultWithBucket(tx, cfg.bypass); err != nil {
		return nil, err
	}
	if err := tx.Register(a); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Account) Address() ledger.Address {
	return a.address
}

// AuthKey is the trader key that authorizes listing changes.
func (a *Account) AuthKey() ledger.GlobalID {
	return a.authKey
}

// Owner is the linked account that receives sale proceeds and cancelled assets.
func (a *Account) Owner() *ledger.Account {
	return a.owner
}

func (a *Account) Listing(id ledger.GlobalID) (entity.Listing, bool) {
	l, ok := a.listings.Get(id)
	if !ok {
		return entity.Listing{}, false
	}

	return l.Clone(), true
}

func (a *Account) Listings() []entity.Listing {
	out := make([]entity.Listing, 0, a.listings.Len())
	a.listings.Range(func(_ ledger.GlobalID, l entity.Listing) bool {
		out = append(out, l.Clone())
		return true
	})

	return out
}

// Escrowed reports whether the custody vault of id holds the asset.
func (a *Account) Escrowed(id ledger.GlobalID) bool {
	v, ok := a.vaults.Get(id)
	return ok && !v.IsEmpty()
}

// HasVault reports whether a custody vault was ever created for id.
func (a *Account) HasVault(id ledger.GlobalID) bool {
	return a.vaults.Has(id)
}

// Escrows returns the ids of every custody vault, empty or not.
func (a *Account) Escrows() []ledger.GlobalID {
	out := make([]ledger.GlobalID, 0, a.vaults.Len())
	a.vaults.Range(func(id ledger.GlobalID, _ *ledger.Vault) bool {
		out = append(out, id)
		return true
	})

	return out
}

func (a *Account) List(
	tx *ledger.Tx,
	auth *ledger.Proof,
	asset *ledger.Bucket,
	price decimal.Decimal,
	currency ledger.Address,
	buyerPermissions []ledger.Address,
) error {
	return tx.Call(a.address, func() error {
		if err := a.authorize(tx, auth); err != nil {
			return err
		}
		if !price.IsPositive() {
			return ledger.Invalid("list: price must be greater than zero")
		}
		if !asset.IsNonFungible() || !asset.Amount().Equal(decimal.NewFromInt(1)) {
			return ledger.Invalid("list: exactly one non-fungible can be listed at a time")
		}
		if _, ok := tx.Resource(currency); !ok {
			return ledger.NotFound("list: currency %s", currency)
		}

		localID, err := asset.NonFungibleID()
		if err != nil {
			return err
		}
		id := ledger.NewGlobalID(asset.Resource(), localID)
		if a.listings.Has(id) {
			return ledger.Invalid("list: %s is already listed", id)
		}

		listing := entity.Listing{
			Asset:            id,
			Currency:         currency,
			Price:            price,
			BuyerPermissions: append([]ledger.Address(nil), buyerPermissions...),
			TraderAccount:    a.address,
			CreatedIn:        tx.ID(),
		}
		a.listings.Insert(tx, id, listing)

		vault, ok := a.vaults.Get(id)
		if !ok {
			vault = ledger.NewVault(asset.ResourceManager())
			a.vaults.Insert(tx, id, vault)
		}
		if err := a.withBypass(tx, func() error { return vault.Put(tx, asset) }); err != nil {
			return err
		}

		zap.L().With(zap.String("trader", a.address.String()), zap.String("asset", id.String()), zap.String("price", price.String())).
			Info("Trader: Listed")

		return a.notify(tx, func(emitter *ledger.Proof) error {
			return a.notifier.ListingCreated(tx, listing, emitter)
		})
	})
}

// Purchase settles a listing. payment must match the listing exactly and
// permission must prove one of the listing's authorized buyer badges.
func (a *Account) Purchase(
	tx *ledger.Tx,
	id ledger.GlobalID,
	payment *ledger.Bucket,
	permission *ledger.Proof,
	recipient *ledger.Account,
) (*PurchaseResult, error) {
	var result *PurchaseResult

	err := tx.Call(a.address, func() error {
		listing, ok := a.listings.Get(id)
		if !ok {
			return ledger.NotFound("purchase: no listing for %s", id)
		}

		if err := permission.Valid(tx); err != nil {
			return err
		}
		buyer := permission.Resource()
		if !listing.Permits(buyer) {
			return ledger.Denied("purchase: %s is not an authorized buyer of %s", buyer, id)
		}

		feeRate, hasFee := permission.ResourceManager().MetadataDecimal(entity.MarketplaceFeeMetadata)
		if hasFee && !entity.IsRate(feeRate) {
			return ledger.Invalid("purchase: marketplace fee %s must be between 0 and 1", feeRate)
		}

		if payment.Resource() != listing.Currency {
			return ledger.Invalid("purchase: payment in %s, listing wants %s", payment.Resource(), listing.Currency)
		}
		if !payment.Amount().Equal(listing.Price) {
			return ledger.Invalid("purchase: payment amount %s does not match price %s", payment.Amount(), listing.Price)
		}

		if tx.ID() == listing.CreatedIn {
			return ledger.Replay("purchase: %s was listed in this transaction", id)
		}

		vault, ok := a.vaults.Get(id)
		if !ok {
			return ledger.NotFound("purchase: no vault for %s", id)
		}
		asset, err := vault.TakeNonFungible(tx, id.Local)
		if err != nil {
			return err
		}

		original := payment.Amount()
		remainder := payment

		policy, err := resolvePolicy(tx, asset.ResourceManager())
		if err != nil {
			return err
		}
		if policy != nil {
			if remainder, err = policy.PayRoyalty(tx, id.Resource, payment, buyer); err != nil {
				return err
			}
		}
		royaltyPaid := original.Sub(remainder.Amount())

		var fee *ledger.Bucket
		if hasFee {
			if fee, err = remainder.TakeAdvanced(original.Mul(feeRate)); err != nil {
				return err
			}
		}

		receipt, err := mintReceipt(tx, asset)
		if err != nil {
			return err
		}

		sale := entity.Sale{
			TxID:          tx.ID(),
			Asset:         id,
			TraderAccount: a.address,
			Buyer:         buyer,
			Currency:      listing.Currency,
			Cost:          original,
			Royalty:       royaltyPaid,
			Fee:           decimal.Zero,
			Proceeds:      remainder.Amount(),
			Time:          tx.Now(),
		}
		if fee != nil {
			sale.Fee = fee.Amount()
		}

		if err := a.owner.Deposit(tx, remainder); err != nil {
			return err
		}
		if err := a.withBypass(tx, func() error { return recipient.Deposit(tx, asset) }); err != nil {
			return err
		}

		a.listings.Remove(tx, id)

		zap.L().With(
			zap.String("trader", a.address.String()),
			zap.String("asset", id.String()),
			zap.String("royalty", sale.Royalty.String()),
			zap.String("fee", sale.Fee.String()),
			zap.String("proceeds", sale.Proceeds.String()),
		).Info("Trader: Purchased")

		result = &PurchaseResult{MarketplaceFee: fee, Receipt: receipt, Sale: sale}

		return a.notify(tx, func(emitter *ledger.Proof) error {
			return a.notifier.ListingPurchased(tx, listing, sale, emitter)
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Cancel returns the asset to the owner account and removes the listing.
func (a *Account) Cancel(tx *ledger.Tx, auth *ledger.Proof, id ledger.GlobalID) error {
	return tx.Call(a.address, func() error {
		if err := a.authorize(tx, auth); err != nil {
			return err
		}

		listing, ok := a.listings.Get(id)
		if !ok {
			return ledger.NotFound("cancel: no listing for %s", id)
		}
		vault, ok := a.vaults.Get(id)
		if !ok {
			return ledger.NotFound("cancel: no vault for %s", id)
		}

		asset := vault.TakeAll(tx)
		a.listings.Remove(tx, id)

		if err := a.withBypass(tx, func() error { return a.owner.Deposit(tx, asset) }); err != nil {
			return err
		}

		zap.L().With(zap.String("trader", a.address.String()), zap.String("asset", id.String())).Info("Trader: Canceled")

		return a.notify(tx, func(emitter *ledger.Proof) error {
			return a.notifier.ListingCanceled(tx, listing, emitter)
		})
	})
}

func (a *Account) ChangePrice(tx *ledger.Tx, auth *ledger.Proof, id ledger.GlobalID, price decimal.Decimal) error {
	return a.update(tx, auth, id, func(l *entity.Listing) error {
		if !price.IsPositive() {
			return ledger.Invalid("change price: price must be greater than zero")
		}
		l.Price = price

		return nil
	})
}

func (a *Account) AddBuyerPermission(tx *ledger.Tx, auth *ledger.Proof, id ledger.GlobalID, permission ledger.Address) error {
	return a.update(tx, auth, id, func(l *entity.Listing) error {
		if !l.Permits(permission) {
			l.BuyerPermissions = append(l.BuyerPermissions, permission)
		}

		return nil
	})
}

func (a *Account) RevokeBuyerPermission(tx *ledger.Tx, auth *ledger.Proof, id ledger.GlobalID, permission ledger.Address) error {
	return a.update(tx, auth, id, func(l *entity.Listing) error {
		kept := l.BuyerPermissions[:0]
		for _, p := range l.BuyerPermissions {
			if p != permission {
				kept = append(kept, p)
			}
		}
		l.BuyerPermissions = kept

		return nil
	})
}

// TransferToExternalComponent hands an asset to a component method. Royalty
// assets go through their policy, which decides whether target is allowed.
func (a *Account) TransferToExternalComponent(
	tx *ledger.Tx,
	auth *ledger.Proof,
	asset *ledger.Bucket,
	target ledger.ExternalComponent,
	method string,
) ([]*ledger.Bucket, error) {
	var out []*ledger.Bucket

	err := tx.Call(a.address, func() error {
		if err := a.authorize(tx, auth); err != nil {
			return err
		}
		target, err := royalty.ResolveComponent(tx, target)
		if err != nil {
			return err
		}

		policy, err := resolvePolicy(tx, asset.ResourceManager())
		if err != nil {
			return err
		}
		if policy != nil {
			out, err = policy.TransferToDapp(tx, asset, target, method)
			return err
		}

		return tx.Call(target.Address(), func() error {
			var err error
			if out, err = target.Invoke(tx, method, asset); err != nil {
				return ledger.External(err, "transfer: %s.%s", target.Address(), method)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// TransferToOwnAccount moves an asset between accounts of the same owner.
// The recipient owner must sign the transaction.
func (a *Account) TransferToOwnAccount(tx *ledger.Tx, auth *ledger.Proof, asset *ledger.Bucket, recipient *ledger.Account) error {
	return tx.Call(a.address, func() error {
		if err := a.authorize(tx, auth); err != nil {
			return err
		}
		if recipient.Owner() != a.owner.Owner() || !tx.SignedBy(recipient.Owner()) {
			return ledger.Denied("transfer: %s is not owned by the signer", recipient.Address())
		}

		return a.withBypass(tx, func() error { return recipient.Deposit(tx, asset) })
	})
}

func (a *Account) update(tx *ledger.Tx, auth *ledger.Proof, id ledger.GlobalID, apply func(l *entity.Listing) error) error {
	return tx.Call(a.address, func() error {
		if err := a.authorize(tx, auth); err != nil {
			return err
		}

		current, ok := a.listings.Get(id)
		if !ok {
			return ledger.NotFound("update: no listing for %s", id)
		}

		listing := current.Clone()
		if err := apply(&listing); err != nil {
			return err
		}
		a.listings.Insert(tx, id, listing)

		return a.notify(tx, func(emitter *ledger.Proof) error {
			return a.notifier.ListingUpdated(tx, listing, emitter)
		})
	})
}

func (a *Account) authorize(tx *ledger.Tx, auth *ledger.Proof) error {
	return auth.CheckNonFungible(tx, a.authKey)
}

func (a *Account) withBypass(tx *ledger.Tx, fn func() error) error {
	proof, err := a.bypass.CreateProof(tx)
	if err != nil {
		return err
	}

	return tx.Authorize(proof, fn)
}

func (a *Account) notify(tx *ledger.Tx, fn func(emitter *ledger.Proof) error) error {
	if a.notifier == nil {
		return nil
	}

	proof, err := a.emitter.CreateProof(tx)
	if err != nil {
		return err
	}

	return fn(proof)
}

// resolvePolicy finds the royalty policy of a resource. Resources without
// royalty metadata have none.
func resolvePolicy(tx *ledger.Tx, rm *ledger.ResourceManager) (Policy, error) {
	addr, ok := rm.MetadataAddress(entity.RoyaltyComponentMetadata)
	if !ok {
		return nil, nil
	}

	component, ok := tx.Component(addr)
	if !ok {
		return nil, ledger.NotFound("royalty component %s of %s", addr, rm.Address())
	}
	policy, ok := component.(Policy)
	if !ok {
		return nil, ledger.Invalid("component %s is not a royalty policy", addr)
	}

	return policy, nil
}
