package di

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/api"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/daemon"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/indexer"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/messenger"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"github.com/ZilDuck/opentrade/internal/repository"
	"github.com/ZilDuck/opentrade/internal/webhook"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
	"time"
)

// Definitions builds every service from config.Get(). Services backed by an
// optional backend are only defined when that backend is enabled.
func Definitions(cfg *config.Config) []di.Def {
	defs := []di.Def{
		{
			Name: "ledger",
			Build: func(ctn di.Container) (interface{}, error) {
				return ledger.New(), nil
			},
		},
		{
			Name: "protocol",
			Build: func(ctn di.Container) (interface{}, error) {
				return protocol.Bootstrap(context.Background(), ctn.Get("ledger").(*ledger.Ledger))
			},
			Close: func(obj interface{}) error {
				obj.(*protocol.Protocol).Events.Close()
				return nil
			},
		},
		{
			Name: "webhook",
			Build: func(ctn di.Container) (interface{}, error) {
				client := webhook.NewClient(cfg.Webhook.Retries)
				return webhook.NewService(cfg.Webhook.Urls, cfg.Webhook.AccessKey, client), nil
			},
		},
		{
			Name: "api",
			Build: func(ctn di.Container) (interface{}, error) {
				var listingRepo repository.ListingRepository
				var saleRepo repository.SaleRepository
				if cfg.ElasticSearch.Enabled {
					listingRepo = ctn.Get("listing.repo").(repository.ListingRepository)
					saleRepo = ctn.Get("sale.repo").(repository.SaleRepository)
				}

				return api.NewServer(ctn.Get("protocol").(*protocol.Protocol), listingRepo, saleRepo), nil
			},
		},
		{
			Name: "daemon",
			Build: func(ctn di.Container) (interface{}, error) {
				var elastic elastic_cache.Index
				var listeners []daemon.Listener

				if cfg.ElasticSearch.Enabled {
					elastic = ctn.Get("elastic").(elastic_cache.Index)
					listeners = append(listeners, ctn.Get("indexer").(indexer.Indexer))
				}
				if cfg.Amqp.Enabled {
					listeners = append(listeners, ctn.Get("messenger").(*messenger.Messenger))
				}
				if len(cfg.Webhook.Urls) != 0 {
					listeners = append(listeners, ctn.Get("webhook").(webhook.Service))
				}

				daemonCfg := daemon.Config{
					ApiPort:       cfg.ApiPort,
					Reindex:       cfg.Reindex,
					SeedDemo:      cfg.SeedDemo,
					FlushInterval: time.Duration(cfg.ElasticSearch.FlushSeconds) * time.Second,
					Demo: protocol.DemoConfig{
						RoyaltyPercent:  cfg.Marketplace.RoyaltyPercent,
						MarketplaceName: cfg.Marketplace.Name,
						FeeRate:         cfg.Marketplace.FeeRate,
						MintFee:         cfg.Marketplace.MintFee,
						Price:           cfg.Marketplace.DemoPrice,
					},
				}

				return daemon.NewDaemon(
					daemonCfg,
					ctn.Get("protocol").(*protocol.Protocol),
					ctn.Get("api").(api.Server),
					elastic,
					listeners...,
				), nil
			},
		},
	}

	if cfg.ElasticSearch.Enabled {
		defs = append(defs, elasticDefinitions(cfg)...)
	}

	if cfg.Amqp.Enabled {
		defs = append(defs, di.Def{
			Name: "messenger",
			Build: func(ctn di.Container) (interface{}, error) {
				return messenger.NewMessenger(cfg.Amqp.Uri), nil
			},
			Close: func(obj interface{}) error {
				return obj.(*messenger.Messenger).Close()
			},
		})
	}

	return defs
}

func elasticDefinitions(cfg *config.Config) []di.Def {
	return []di.Def{
		{
			Name: "elastic",
			Build: func(ctn di.Container) (interface{}, error) {
				elastic, err := elastic_cache.New(cfg.ElasticSearch, cfg.Aws)
				if err != nil {
					zap.L().With(zap.Error(err)).Fatal("Failed to start ES")
				}

				return elastic, nil
			},
		},
		{
			Name: "listing.repo",
			Build: func(ctn di.Container) (interface{}, error) {
				return repository.NewListingRepository(ctn.Get("elastic").(elastic_cache.Index)), nil
			},
		},
		{
			Name: "sale.repo",
			Build: func(ctn di.Container) (interface{}, error) {
				return repository.NewSaleRepository(ctn.Get("elastic").(elastic_cache.Index)), nil
			},
		},
		{
			Name: "indexer",
			Build: func(ctn di.Container) (interface{}, error) {
				elastic := ctn.Get("elastic").(elastic_cache.Index)
				return indexer.NewIndexer(elastic, indexer.NewListingIndexer(elastic)), nil
			},
		},
	}
}
