package main

import (
	"encoding/json"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/config/di"
	"github.com/ZilDuck/opentrade/internal/dev"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/messenger"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"os"
	"os/signal"
)

var container *di.Container

func main() {
	config.Init("cli")

	var err error
	if container, err = di.NewContainer(); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	pageFlags := []cli.Flag{
		&cli.IntFlag{Name: "size", Value: 20, Usage: "page size"},
		&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
	}

	app := &cli.App{
		Name:  "opentrade",
		Usage: "royalty enforced trading protocol",
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "run a listing and a marketplace purchase against an in-memory ledger",
				Action: runDemo,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "price", Usage: "listing price, defaults to DEMO_PRICE"},
					&cli.StringFlag{Name: "royalty", Usage: "royalty percent, defaults to DEMO_ROYALTY_PERCENT"},
				},
			},
			{
				Name:   "mappings",
				Usage:  "install the search index mappings",
				Action: installMappings,
			},
			{
				Name:      "listings",
				Usage:     "indexed listings of a trader account",
				ArgsUsage: "<trader address>",
				Action:    listings,
				Flags:     append([]cli.Flag{&cli.StringFlag{Name: "status", Usage: "active, sold or canceled"}}, pageFlags...),
			},
			{
				Name:      "sales",
				Usage:     "indexed sales of a collection",
				ArgsUsage: "<collection address>",
				Action:    sales,
				Flags:     pageFlags,
			},
			{
				Name:   "watch",
				Usage:  "print listing events from the message queue",
				Action: watch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to run CLI")
	}
}

func runDemo(c *cli.Context) error {
	p := container.GetProtocol()

	cfg := protocol.DefaultDemoConfig()
	cfg.MarketplaceName = config.Get().Marketplace.Name
	cfg.FeeRate = config.Get().Marketplace.FeeRate
	cfg.MintFee = config.Get().Marketplace.MintFee
	cfg.RoyaltyPercent = config.Get().Marketplace.RoyaltyPercent
	cfg.Price = config.Get().Marketplace.DemoPrice
	if err := decimalFlag(c, "price", &cfg.Price); err != nil {
		return err
	}
	if err := decimalFlag(c, "royalty", &cfg.RoyaltyPercent); err != nil {
		return err
	}

	report, err := protocol.RunDemo(c.Context, p, cfg)
	if err != nil {
		return err
	}
	p.Events.Wait()
	dev.Dump(report)

	return printJson(report)
}

func installMappings(c *cli.Context) error {
	if !config.Get().ElasticSearch.Enabled {
		return cli.Exit("search index is not enabled", 1)
	}

	return container.GetElastic().InstallMappings()
}

func listings(c *cli.Context) error {
	if !config.Get().ElasticSearch.Enabled {
		return cli.Exit("search index is not enabled", 1)
	}
	if c.Args().Len() != 1 {
		return cli.Exit("a trader address is required", 1)
	}

	docs, total, err := container.GetListingRepo().GetListingsByTrader(
		ledger.Address(c.Args().First()),
		entity.ListingStatus(c.String("status")),
		c.Int("size"),
		c.Int("page"),
	)
	if err != nil {
		return err
	}
	zap.S().Infof("Found %d listings", total)

	return printJson(docs)
}

func sales(c *cli.Context) error {
	if !config.Get().ElasticSearch.Enabled {
		return cli.Exit("search index is not enabled", 1)
	}
	if c.Args().Len() != 1 {
		return cli.Exit("a collection address is required", 1)
	}

	found, total, err := container.GetSaleRepo().GetSalesByCollection(ledger.Address(c.Args().First()), c.Int("size"), c.Int("page"))
	if err != nil {
		return err
	}
	zap.S().Infof("Found %d sales", total)

	return printJson(found)
}

func watch(c *cli.Context) error {
	if !config.Get().Amqp.Enabled {
		return cli.Exit("message queue is not enabled", 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	return container.GetMessenger().ConsumeMessages(ctx, messenger.ListingEvents, func(routingKey string, body []byte) {
		var e entity.ListingEvent
		if err := json.Unmarshal(body, &e); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to read message")
			return
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", routingKey, e.TxID, e.Listing.Asset, e.Listing.Price)
	})
}

func decimalFlag(c *cli.Context, name string, target interface{ UnmarshalText([]byte) error }) error {
	if !c.IsSet(name) {
		return nil
	}
	if err := target.UnmarshalText([]byte(c.String(name))); err != nil {
		return cli.Exit(fmt.Sprintf("invalid %s: %v", name, err), 1)
	}

	return nil
}

func printJson(el interface{}) error {
	out, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(out))

	return err
}
