package royalty

import (
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CollectionSpec describes a royalty collection to create.
type CollectionSpec struct {
	Name        string
	Description string
	IconURL     string

	// DepositBypass is the badge held by trader accounts that lets them
	// move assets of the collection through its deposit gate.
	DepositBypass ledger.Address
	Config        entity.RoyaltyConfig
}

// Engine is the royalty policy of one collection. It owns the collection
// resource, collects royalties per currency and guards the configuration
// behind the creator key.
type Engine struct {
	address    ledger.Address
	collection *ledger.ResourceManager
	creatorKey *ledger.ResourceManager

	config        *ledger.Cell[entity.RoyaltyConfig]
	royaltyVaults *ledger.KeyValueStore[ledger.Address, *ledger.Vault]
}

var CreatorKeyID = ledger.StringID("creator")

// NewCollection creates the collection resource, gated against the new
// engine, and returns the creator key.
func NewCollection(tx *ledger.Tx, spec CollectionSpec) (*Engine, *ledger.Bucket, error) {
	cfg := spec.Config.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if spec.DepositBypass.IsZero() {
		return nil, nil, ledger.Invalid("collection %q needs a deposit bypass badge", spec.Name)
	}

	e := &Engine{
		address:       tx.AllocateAddress(ledger.KindComponent),
		config:        ledger.NewCell(cfg),
		royaltyVaults: ledger.NewKeyValueStore[ledger.Address, *ledger.Vault](),
	}

	var key *ledger.Bucket
	err := tx.Call(e.address, func() error {
		var err error
		e.creatorKey, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": spec.Name + " Creator Key"},
		})
		if err != nil {
			return err
		}
		if key, err = e.creatorKey.MintNonFungible(tx, CreatorKeyID); err != nil {
			return err
		}

		e.collection, err = tx.NewResource(ledger.ResourceSpec{
			Type: ledger.NonFungible,
			Metadata: map[string]interface{}{
				"name":                          spec.Name,
				"description":                   spec.Description,
				"icon_url":                      spec.IconURL,
				entity.RoyaltyComponentMetadata: e.address,
			},
			DepositRule: ledger.RoyaltyGate{Bypass: spec.DepositBypass, Policy: e.address},
			Burnable:    true,
		})

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Register(e); err != nil {
		return nil, nil, err
	}

	zap.L().With(
		zap.String("engine", e.address.String()),
		zap.String("collection", e.collection.Address().String()),
		zap.String("royalty", cfg.RoyaltyPercent.String()),
	).Info("Royalty: Collection created")

	return e, key, nil
}

func (e *Engine) Address() ledger.Address {
	return e.address
}

func (e *Engine) Collection() ledger.Address {
	return e.collection.Address()
}

func (e *Engine) CreatorKey() ledger.GlobalID {
	return ledger.NewGlobalID(e.creatorKey.Address(), CreatorKeyID)
}

func (e *Engine) Config() entity.RoyaltyConfig {
	return e.config.Get().Clone()
}

func (e *Engine) RoyaltyBalance(currency ledger.Address) decimal.Decimal {
	if v, ok := e.royaltyVaults.Get(currency); ok {
		return v.Amount()
	}

	return decimal.Zero
}

func (e *Engine) RoyaltyBalances() map[ledger.Address]decimal.Decimal {
	out := make(map[ledger.Address]decimal.Decimal, e.royaltyVaults.Len())
	e.royaltyVaults.Range(func(currency ledger.Address, v *ledger.Vault) bool {
		out[currency] = v.Amount()
		return true
	})

	return out
}

// PayRoyalty takes the royalty for a sale of asset out of payment and
// returns the remainder.
func (e *Engine) PayRoyalty(tx *ledger.Tx, asset ledger.Address, payment *ledger.Bucket, buyer ledger.Address) (*ledger.Bucket, error) {
	err := tx.Call(e.address, func() error {
		if asset != e.collection.Address() {
			return ledger.Invalid("pay royalty: %s is not governed by this policy", asset)
		}

		cfg := e.config.Get()
		if cfg.LimitBuyers && !cfg.PermissionedBuyers[buyer] {
			return ledger.Denied("pay royalty: buyer %s is not permitted", buyer)
		}

		currency := payment.Resource()
		if cfg.LimitCurrencies && !cfg.PermittedCurrencies[currency] {
			return ledger.Invalid("pay royalty: currency %s is not permitted", currency)
		}

		royalty, err := payment.TakeAdvanced(payment.Amount().Mul(cfg.RoyaltyPercent))
		if err != nil {
			return err
		}

		if cfg.LimitCurrencies && cfg.MinimumRoyalties {
			// every permitted currency needs a minimum once minimums are on
			minimum, ok := cfg.MinimumRoyaltyAmounts[currency]
			if !ok {
				return ledger.Invalid("pay royalty: no minimum royalty set for %s", currency)
			}
			if royalty.Amount().LessThan(minimum) {
				return ledger.Invalid("pay royalty: royalty %s is below the minimum %s", royalty.Amount(), minimum)
			}
		}

		zap.L().With(
			zap.String("collection", asset.String()),
			zap.String("currency", currency.String()),
			zap.String("royalty", royalty.Amount().String()),
		).Debug("Royalty: Paid")

		return e.deposit(tx, royalty)
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

// TransferToDapp hands an asset of the collection to a permitted component.
// The component may deposit it into its own vault exactly once during the
// call.
func (e *Engine) TransferToDapp(tx *ledger.Tx, asset *ledger.Bucket, target ledger.ExternalComponent, method string) ([]*ledger.Bucket, error) {
	var out []*ledger.Bucket

	err := tx.Call(e.address, func() error {
		if asset.Resource() != e.collection.Address() {
			return ledger.Invalid("transfer to dapp: %s is not governed by this policy", asset.Resource())
		}
		target, err := ResolveComponent(tx, target)
		if err != nil {
			return err
		}

		cfg := e.config.Get()
		if cfg.LimitDapps && !cfg.PermissionedDapps[target.Address()] {
			return ledger.Denied("transfer to dapp: %s is not a permissioned dapp", target.Address())
		}

		ticket := tx.IssueTicket(target.Address(), asset)

		return tx.WithTicket(ticket, func() error {
			return tx.Call(target.Address(), func() error {
				var err error
				out, err = target.Invoke(tx, method, asset)
				if err != nil {
					return ledger.External(err, "transfer to dapp: %s.%s", target.Address(), method)
				}

				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("dapp", target.Address().String()), zap.String("method", method)).
		Info("Royalty: Asset transferred to dapp")

	return out, nil
}

// DirectMint mints new assets of the collection into recipient.
func (e *Engine) DirectMint(tx *ledger.Tx, creator *ledger.Proof, recipient *ledger.Account, ids ...ledger.LocalID) error {
	return tx.Call(e.address, func() error {
		if err := creator.CheckNonFungible(tx, e.CreatorKey()); err != nil {
			return err
		}

		minted, err := e.collection.MintNonFungible(tx, ids...)
		if err != nil {
			return err
		}

		return recipient.Deposit(tx, minted)
	})
}

// WithdrawRoyalties empties the royalty vault of currency.
func (e *Engine) WithdrawRoyalties(tx *ledger.Tx, creator *ledger.Proof, currency ledger.Address) (*ledger.Bucket, error) {
	var out *ledger.Bucket

	err := tx.Call(e.address, func() error {
		if err := creator.CheckNonFungible(tx, e.CreatorKey()); err != nil {
			return err
		}

		v, ok := e.royaltyVaults.Get(currency)
		if !ok {
			return ledger.NotFound("no royalties collected in %s", currency)
		}
		out = v.TakeAll(tx)

		return nil
	})

	return out, err
}

func (e *Engine) deposit(tx *ledger.Tx, royalty *ledger.Bucket) error {
	if v, ok := e.royaltyVaults.Get(royalty.Resource()); ok {
		return v.Put(tx, royalty)
	}

	v, err := ledger.VaultWithBucket(tx, royalty)
	if err != nil {
		return err
	}
	e.royaltyVaults.Insert(tx, royalty.Resource(), v)

	return nil
}

// ResolveComponent returns the component registered at target's address.
// End-user accounts, unregistered targets and values that are not the
// registered component are refused.
func ResolveComponent(tx *ledger.Tx, target ledger.ExternalComponent) (ledger.ExternalComponent, error) {
	if target.Address().Kind() == ledger.KindAccount {
		return nil, ledger.Denied("%s is an account, not a component", target.Address())
	}
	if _, isAccount := ledger.Component(target).(*ledger.Account); isAccount {
		return nil, ledger.Denied("%s is an account, not a component", target.Address())
	}

	registered, ok := tx.Component(target.Address())
	if !ok {
		return nil, ledger.Denied("%s is not a registered component", target.Address())
	}
	if _, isAccount := registered.(*ledger.Account); isAccount {
		return nil, ledger.Denied("%s is an account, not a component", target.Address())
	}
	// components are registered by pointer
	if registered != ledger.Component(target) {
		return nil, ledger.Denied("%s is not the component registered at that address", target.Address())
	}

	return target, nil
}
