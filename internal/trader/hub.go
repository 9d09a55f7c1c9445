package trader

import (
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Hub creates trader accounts, one per end-user account, and owns the
// badges they need: the trader key, the emitter badge for the notification
// sink and the deposit bypass badge royalty collections trust.
type Hub struct {
	address ledger.Address

	adminBadge   *ledger.ResourceManager
	traderKey    *ledger.ResourceManager
	emitterBadge *ledger.ResourceManager
	bypassBadge  *ledger.ResourceManager
	sink         *event.Sink

	registered *ledger.KeyValueStore[ledger.Address, *Account]
	traders    *ledger.KeyValueStore[ledger.Address, *Account]
}

// StartHub returns the hub and its admin badge.
func StartHub(tx *ledger.Tx) (*Hub, *ledger.Bucket, error) {
	h := &Hub{
		address:    tx.AllocateAddress(ledger.KindComponent),
		registered: ledger.NewKeyValueStore[ledger.Address, *Account](),
		traders:    ledger.NewKeyValueStore[ledger.Address, *Account](),
	}

	var admin *ledger.Bucket
	err := tx.Call(h.address, func() error {
		var err error
		h.adminBadge, admin, err = tx.NewResourceWithSupply(ledger.ResourceSpec{
			Type:     ledger.Fungible,
			Metadata: map[string]interface{}{"name": "OpenTrade Hub Admin"},
		}, decimal.NewFromInt(1))
		if err != nil {
			return err
		}

		if h.traderKey, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": "OpenTrade Trader Key"},
		}); err != nil {
			return err
		}
		if h.emitterBadge, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": "OpenTrade Event Emitter"},
		}); err != nil {
			return err
		}
		if h.bypassBadge, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.Fungible,
			Metadata: map[string]interface{}{"name": "OpenTrade Royalty Depositer"},
		}); err != nil {
			return err
		}

		h.sink, err = event.NewSink(tx, h.emitterBadge.Address())

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Register(h); err != nil {
		return nil, nil, err
	}

	zap.L().With(zap.String("hub", h.address.String())).Info("Hub: Started")

	return h, admin, nil
}

func (h *Hub) Address() ledger.Address {
	return h.address
}

func (h *Hub) AdminBadge() ledger.Address {
	return h.adminBadge.Address()
}

func (h *Hub) TraderKey() ledger.Address {
	return h.traderKey.Address()
}

func (h *Hub) EmitterBadge() ledger.Address {
	return h.emitterBadge.Address()
}

// BypassBadge is the badge royalty collections must trust for their assets
// to be tradable through this hub.
func (h *Hub) BypassBadge() ledger.Address {
	return h.bypassBadge.Address()
}

func (h *Hub) Sink() *event.Sink {
	return h.sink
}

// CreateTraderAccount creates the trader account linked to owner and returns
// it with its trader key. The owner must sign the transaction.
func (h *Hub) CreateTraderAccount(tx *ledger.Tx, owner *ledger.Account) (*Account, *ledger.Bucket, error) {
	var account *Account
	var key *ledger.Bucket

	err := tx.Call(h.address, func() error {
		if !tx.SignedBy(owner.Owner()) {
			return ledger.Denied("creating a trader account requires the signature of %s", owner.Owner())
		}
		if h.registered.Has(owner.Address()) {
			return ledger.Invalid("account %s already has a trader account", owner.Address())
		}

		localID := ledger.RUID()
		var err error
		if key, err = h.traderKey.MintNonFungible(tx, localID); err != nil {
			return err
		}
		emitter, err := h.emitterBadge.MintRUID(tx)
		if err != nil {
			return err
		}
		bypass, err := h.bypassBadge.Mint(tx, decimal.NewFromInt(1))
		if err != nil {
			return err
		}

		account, err = newAccount(tx, accountConfig{
			authKey:  ledger.NewGlobalID(h.traderKey.Address(), localID),
			owner:    owner,
			emitter:  emitter,
			bypass:   bypass,
			notifier: h.sink,
		})
		if err != nil {
			return err
		}

		h.registered.Insert(tx, owner.Address(), account)
		h.traders.Insert(tx, account.Address(), account)

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().With(
		zap.String("trader", account.Address().String()),
		zap.String("owner", owner.Address().String()),
	).Info("Hub: Trader account created")

	return account, key, nil
}

// TraderFor returns the trader account linked to an end-user account.
func (h *Hub) TraderFor(owner ledger.Address) (*Account, bool) {
	return h.registered.Get(owner)
}

func (h *Hub) Trader(address ledger.Address) (*Account, bool) {
	return h.traders.Get(address)
}

func (h *Hub) Traders() []*Account {
	out := make([]*Account, 0, h.traders.Len())
	h.traders.Range(func(_ ledger.Address, a *Account) bool {
		out = append(out, a)
		return true
	})

	return out
}
