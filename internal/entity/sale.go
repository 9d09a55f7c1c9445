package entity

import (
	"fmt"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"time"
)

// Sale is the breakdown of a settled purchase.
type Sale struct {
	TxID          ledger.TxID     `json:"txId"`
	Asset         ledger.GlobalID `json:"asset"`
	TraderAccount ledger.Address  `json:"traderAccount"`
	Buyer         ledger.Address  `json:"buyer"`
	Currency      ledger.Address  `json:"currency"`
	Cost          decimal.Decimal `json:"cost"`
	Royalty       decimal.Decimal `json:"royalty"`
	Fee           decimal.Decimal `json:"fee"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	Time          time.Time       `json:"time"`
}

func (s Sale) Slug() string {
	return slug.Make(fmt.Sprintf("sale-%s-%s-%s", s.TxID, s.Asset.Resource, s.Asset.Local))
}

type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusCanceled ListingStatus = "canceled"
)

// ListingDocument is the indexed view of a listing over its lifetime.
type ListingDocument struct {
	Listing
	Status    ListingStatus `json:"status"`
	UpdatedIn ledger.TxID   `json:"updatedIn"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (d ListingDocument) Slug() string {
	return d.Listing.Slug()
}
