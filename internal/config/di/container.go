package di

import (
	"github.com/ZilDuck/opentrade/internal/api"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/daemon"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/messenger"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"github.com/ZilDuck/opentrade/internal/repository"
	"github.com/sarulabs/di/v2"
)

// Container gives typed access to the services in Definitions.
type Container struct {
	di.Container
}

func NewContainer() (*Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}

	if err := builder.Add(Definitions(config.Get())...); err != nil {
		return nil, err
	}

	return &Container{builder.Build()}, nil
}

func (c *Container) GetProtocol() *protocol.Protocol {
	return c.Get("protocol").(*protocol.Protocol)
}

func (c *Container) GetApi() api.Server {
	return c.Get("api").(api.Server)
}

func (c *Container) GetDaemon() *daemon.Daemon {
	return c.Get("daemon").(*daemon.Daemon)
}

func (c *Container) GetElastic() elastic_cache.Index {
	return c.Get("elastic").(elastic_cache.Index)
}

func (c *Container) GetListingRepo() repository.ListingRepository {
	return c.Get("listing.repo").(repository.ListingRepository)
}

func (c *Container) GetSaleRepo() repository.SaleRepository {
	return c.Get("sale.repo").(repository.SaleRepository)
}

func (c *Container) GetMessenger() *messenger.Messenger {
	return c.Get("messenger").(*messenger.Messenger)
}
