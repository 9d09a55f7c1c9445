package entity

import (
	"fmt"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"time"
)

// Entity is anything stored in the search index under its slug.
type Entity interface {
	Slug() string
}

const (
	RoyaltyComponentMetadata = "royalty_component"
	MarketplaceFeeMetadata   = "marketplace_fee"
	MarketplaceAddrMetadata  = "marketplace_address"
)

type Listing struct {
	Asset            ledger.GlobalID  `json:"asset"`
	Currency         ledger.Address   `json:"currency"`
	Price            decimal.Decimal  `json:"price"`
	BuyerPermissions []ledger.Address `json:"buyerPermissions"`
	TraderAccount    ledger.Address   `json:"traderAccount"`
	CreatedIn        ledger.TxID      `json:"createdIn"`
}

func (l Listing) Slug() string {
	return CreateListingSlug(l.Asset)
}

func CreateListingSlug(asset ledger.GlobalID) string {
	return slug.Make(fmt.Sprintf("listing-%s-%s", asset.Resource, asset.Local))
}

func (l Listing) Permits(buyer ledger.Address) bool {
	for _, p := range l.BuyerPermissions {
		if p == buyer {
			return true
		}
	}

	return false
}

func (l Listing) Clone() Listing {
	c := l
	c.BuyerPermissions = append([]ledger.Address(nil), l.BuyerPermissions...)

	return c
}

type ListingAction string

const (
	ListingCreated   ListingAction = "created"
	ListingUpdated   ListingAction = "updated"
	ListingCanceled  ListingAction = "canceled"
	ListingPurchased ListingAction = "purchased"
)

// ListingEvent is the payload of every listing lifecycle notification.
type ListingEvent struct {
	Action  ListingAction `json:"action"`
	Listing Listing       `json:"listing"`
	Sale    *Sale         `json:"sale,omitempty"`
	TxID    ledger.TxID   `json:"txId"`
	Time    time.Time     `json:"time"`
}

func (e ListingEvent) Slug() string {
	return slug.Make(fmt.Sprintf("listing-event-%s-%s", e.TxID, e.Action))
}
