package event

import (
	"github.com/ZilDuck/opentrade/internal/ledger"
)

type Type string

const (
	ListingCreatedEvent   Type = "ListingCreatedEvent"
	ListingUpdatedEvent   Type = "ListingUpdatedEvent"
	ListingCanceledEvent  Type = "ListingCanceledEvent"
	ListingPurchasedEvent Type = "ListingPurchasedEvent"

	TransactionRejectedEvent Type = "TransactionRejectedEvent"
)

func ListingEvents() []Type {
	return []Type{
		ListingCreatedEvent,
		ListingUpdatedEvent,
		ListingCanceledEvent,
		ListingPurchasedEvent,
	}
}

// Rejection is the payload of a TransactionRejectedEvent.
type Rejection struct {
	TxID ledger.TxID
	Err  error
}
