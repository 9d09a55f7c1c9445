// Package protocol boots the trading protocol on a ledger and exposes the
// read side used by the daemon and the CLI.
package protocol

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/marketplace"
	"github.com/ZilDuck/opentrade/internal/royalty"
	"github.com/ZilDuck/opentrade/internal/trader"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const OperatorID ledger.Identity = "operator"

type Protocol struct {
	Ledger   *ledger.Ledger
	Events   *event.Manager
	Hub      *trader.Hub
	Operator *ledger.Account
}

// Bootstrap starts the hub on l and routes committed events to a new event
// manager. The hub admin badge is kept by the operator account.
func Bootstrap(ctx context.Context, l *ledger.Ledger) (*Protocol, error) {
	p := &Protocol{Ledger: l, Events: event.NewManager()}

	_, err := l.Execute(ctx, []ledger.Identity{OperatorID}, func(tx *ledger.Tx) error {
		var err error
		if p.Operator, err = ledger.NewAccount(tx, OperatorID); err != nil {
			return err
		}

		hub, admin, err := trader.StartHub(tx)
		if err != nil {
			return err
		}
		p.Hub = hub

		return p.Operator.Deposit(tx, admin)
	})
	if err != nil {
		return nil, err
	}

	l.OnCommit(p.Events.Dispatch)
	l.OnReject(func(txID ledger.TxID, err error) {
		p.Events.EmitEvent(event.TransactionRejectedEvent, event.Rejection{TxID: txID, Err: err})
	})

	zap.L().With(zap.String("hub", p.Hub.Address().String())).Info("Protocol: Bootstrapped")

	return p, nil
}

// TraderListings returns the open listings of a trader account.
func (p *Protocol) TraderListings(address ledger.Address) ([]entity.Listing, error) {
	var listings []entity.Listing

	err := p.Ledger.View(func(tx *ledger.Tx) error {
		account, ok := p.Hub.Trader(address)
		if !ok {
			return ledger.NotFound("trader account %s", address)
		}
		listings = account.Listings()

		return nil
	})

	return listings, err
}

type RoyaltyReport struct {
	Policy     ledger.Address                     `json:"policy"`
	Collection ledger.Address                     `json:"collection"`
	Config     entity.RoyaltyConfig               `json:"config"`
	Balances   map[ledger.Address]decimal.Decimal `json:"balances"`
}

// CollectionRoyalties reports the policy and collected royalties of the
// collection resource at address.
func (p *Protocol) CollectionRoyalties(address ledger.Address) (*RoyaltyReport, error) {
	var report *RoyaltyReport

	err := p.Ledger.View(func(tx *ledger.Tx) error {
		engine, err := resolveEngine(tx, address)
		if err != nil {
			return err
		}
		report = &RoyaltyReport{
			Policy:     engine.Address(),
			Collection: engine.Collection(),
			Config:     engine.Config(),
			Balances:   engine.RoyaltyBalances(),
		}

		return nil
	})

	return report, err
}

type FeeReport struct {
	Marketplace ledger.Address                     `json:"marketplace"`
	Name        string                             `json:"name"`
	FeeRate     decimal.Decimal                    `json:"feeRate"`
	MintFee     decimal.Decimal                    `json:"mintFee"`
	Permission  ledger.Address                     `json:"permission"`
	Balances    map[ledger.Address]decimal.Decimal `json:"balances"`
}

func (p *Protocol) MarketplaceFees(address ledger.Address) (*FeeReport, error) {
	var report *FeeReport

	err := p.Ledger.View(func(tx *ledger.Tx) error {
		component, ok := tx.Component(address)
		if !ok {
			return ledger.NotFound("marketplace %s", address)
		}
		m, ok := component.(*marketplace.Marketplace)
		if !ok {
			return ledger.Invalid("component %s is not a marketplace", address)
		}
		report = &FeeReport{
			Marketplace: m.Address(),
			Name:        m.Name(),
			FeeRate:     m.FeeRate(),
			MintFee:     m.MintFee(),
			Permission:  m.PermissionResource(),
			Balances:    m.FeeBalances(),
		}

		return nil
	})

	return report, err
}

// resolveEngine accepts either the policy component or its collection
// resource.
func resolveEngine(tx *ledger.Tx, address ledger.Address) (*royalty.Engine, error) {
	if rm, ok := tx.Resource(address); ok {
		policy, ok := rm.MetadataAddress(entity.RoyaltyComponentMetadata)
		if !ok {
			return nil, ledger.NotFound("resource %s has no royalty policy", address)
		}
		address = policy
	}

	component, ok := tx.Component(address)
	if !ok {
		return nil, ledger.NotFound("royalty policy %s", address)
	}
	engine, ok := component.(*royalty.Engine)
	if !ok {
		return nil, ledger.Invalid("component %s is not a royalty policy", address)
	}

	return engine, nil
}
