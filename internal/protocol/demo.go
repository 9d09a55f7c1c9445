package protocol

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/marketplace"
	"github.com/ZilDuck/opentrade/internal/royalty"
	"github.com/ZilDuck/opentrade/internal/trader"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	demoCreator ledger.Identity = "demo-creator"
	demoSeller  ledger.Identity = "demo-seller"
	demoBuyer   ledger.Identity = "demo-buyer"
)

type DemoConfig struct {
	RoyaltyPercent  decimal.Decimal
	MarketplaceName string
	FeeRate         decimal.Decimal
	MintFee         decimal.Decimal
	Price           decimal.Decimal
}

func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		RoyaltyPercent:  decimal.RequireFromString("0.05"),
		MarketplaceName: "Trove",
		FeeRate:         decimal.RequireFromString("0.02"),
		MintFee:         decimal.Zero,
		Price:           decimal.NewFromInt(100),
	}
}

type DemoReport struct {
	Collection  ledger.Address  `json:"collection"`
	Policy      ledger.Address  `json:"policy"`
	Marketplace ledger.Address  `json:"marketplace"`
	Trader      ledger.Address  `json:"trader"`
	Currency    ledger.Address  `json:"currency"`
	Asset       ledger.GlobalID `json:"asset"`

	ListedIn    ledger.TxID `json:"listedIn"`
	PurchasedIn ledger.TxID `json:"purchasedIn"`

	Price       decimal.Decimal `json:"price"`
	Royalty     decimal.Decimal `json:"royalty"`
	Fee         decimal.Decimal `json:"fee"`
	Proceeds    decimal.Decimal `json:"proceeds"`
	BuyerHolds  bool            `json:"buyerHolds"`
	ListingOpen bool            `json:"listingOpen"`
}

type demo struct {
	creator, seller, buyer *ledger.Account

	currency ledger.Address
	engine   *royalty.Engine
	market   *marketplace.Marketplace
	trader   *trader.Account
	asset    ledger.GlobalID
}

// RunDemo creates a collection, a marketplace and a seller, then lists one
// asset and buys it through the marketplace in a later transaction.
func RunDemo(ctx context.Context, p *Protocol, cfg DemoConfig) (*DemoReport, error) {
	signers := []ledger.Identity{OperatorID, demoCreator, demoSeller, demoBuyer}
	d := &demo{}

	if _, err := p.Ledger.Execute(ctx, signers, func(tx *ledger.Tx) error {
		return d.setup(tx, p, cfg)
	}); err != nil {
		return nil, err
	}

	listed, err := p.Ledger.Execute(ctx, signers, func(tx *ledger.Tx) error {
		auth, err := d.seller.CreateProofOfNonFungibles(tx, d.trader.AuthKey())
		if err != nil {
			return err
		}
		asset, err := d.seller.WithdrawNonFungible(tx, d.asset)
		if err != nil {
			return err
		}

		return d.trader.List(tx, auth, asset, cfg.Price, d.currency, []ledger.Address{d.market.PermissionResource()})
	})
	if err != nil {
		return nil, err
	}

	purchased, err := p.Ledger.Execute(ctx, signers, func(tx *ledger.Tx) error {
		payment, err := d.buyer.Withdraw(tx, d.currency, cfg.Price)
		if err != nil {
			return err
		}
		receipts, err := d.market.PurchaseRoyalListing(tx, d.asset, payment, d.trader, d.buyer)
		if err != nil {
			return err
		}

		return d.buyer.DepositAll(tx, receipts...)
	})
	if err != nil {
		return nil, err
	}

	report := &DemoReport{
		Collection:  d.engine.Collection(),
		Policy:      d.engine.Address(),
		Marketplace: d.market.Address(),
		Trader:      d.trader.Address(),
		Currency:    d.currency,
		Asset:       d.asset,
		ListedIn:    listed.TxID,
		PurchasedIn: purchased.TxID,
		Price:       cfg.Price,
	}
	err = p.Ledger.View(func(tx *ledger.Tx) error {
		report.Royalty = d.engine.RoyaltyBalance(d.currency)
		report.Fee = d.market.FeeBalance(d.currency)
		report.Proceeds = d.seller.Balance(d.currency)
		report.BuyerHolds = d.buyer.Holds(d.asset)
		_, report.ListingOpen = d.trader.Listing(d.asset)

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(
		zap.String("asset", report.Asset.String()),
		zap.String("royalty", report.Royalty.String()),
		zap.String("fee", report.Fee.String()),
		zap.String("proceeds", report.Proceeds.String()),
	).Info("Demo: Complete")

	return report, nil
}

func (d *demo) setup(tx *ledger.Tx, p *Protocol, cfg DemoConfig) error {
	var err error
	if d.creator, err = ledger.NewAccount(tx, demoCreator); err != nil {
		return err
	}
	if d.seller, err = ledger.NewAccount(tx, demoSeller); err != nil {
		return err
	}
	if d.buyer, err = ledger.NewAccount(tx, demoBuyer); err != nil {
		return err
	}

	currency, funds, err := tx.NewResourceWithSupply(ledger.ResourceSpec{
		Type:         ledger.Fungible,
		Divisibility: ledger.MaxDivisibility,
		Metadata:     map[string]interface{}{"name": "Demo Token", "symbol": "DEMO"},
	}, cfg.Price.Mul(decimal.NewFromInt(10)))
	if err != nil {
		return err
	}
	d.currency = currency.Address()
	if err := d.buyer.Deposit(tx, funds); err != nil {
		return err
	}

	royaltyCfg := entity.NewRoyaltyConfig(cfg.RoyaltyPercent, cfg.RoyaltyPercent)
	engine, creatorKey, err := royalty.NewCollection(tx, royalty.CollectionSpec{
		Name:          "Demo Ducks",
		Description:   "A royalty collection minted by the demo",
		DepositBypass: p.Hub.BypassBadge(),
		Config:        royaltyCfg,
	})
	if err != nil {
		return err
	}
	d.engine = engine
	if err := d.creator.Deposit(tx, creatorKey); err != nil {
		return err
	}

	market, admin, err := marketplace.Start(tx, cfg.MarketplaceName, cfg.FeeRate, cfg.MintFee)
	if err != nil {
		return err
	}
	d.market = market
	if err := p.Operator.Deposit(tx, admin); err != nil {
		return err
	}

	account, key, err := p.Hub.CreateTraderAccount(tx, d.seller)
	if err != nil {
		return err
	}
	d.trader = account
	if err := d.seller.Deposit(tx, key); err != nil {
		return err
	}

	d.asset = ledger.NewGlobalID(engine.Collection(), ledger.IntegerID(1))
	creator, err := d.creator.CreateProofOfNonFungibles(tx, engine.CreatorKey())
	if err != nil {
		return err
	}

	return engine.DirectMint(tx, creator, d.seller, d.asset.Local)
}
