package event

import (
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
)

// Sink records listing lifecycle events. Callers must prove they hold an
// emitter badge, which is only ever given to trader accounts.
type Sink struct {
	address ledger.Address
	emitter ledger.Address
}

func NewSink(tx *ledger.Tx, emitterBadge ledger.Address) (*Sink, error) {
	s := &Sink{address: tx.AllocateAddress(ledger.KindComponent), emitter: emitterBadge}
	if err := tx.Register(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Sink) Address() ledger.Address {
	return s.address
}

func (s *Sink) ListingCreated(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error {
	return s.emit(tx, ListingCreatedEvent, entity.ListingEvent{Action: entity.ListingCreated, Listing: listing}, emitter)
}

func (s *Sink) ListingUpdated(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error {
	return s.emit(tx, ListingUpdatedEvent, entity.ListingEvent{Action: entity.ListingUpdated, Listing: listing}, emitter)
}

func (s *Sink) ListingCanceled(tx *ledger.Tx, listing entity.Listing, emitter *ledger.Proof) error {
	return s.emit(tx, ListingCanceledEvent, entity.ListingEvent{Action: entity.ListingCanceled, Listing: listing}, emitter)
}

func (s *Sink) ListingPurchased(tx *ledger.Tx, listing entity.Listing, sale entity.Sale, emitter *ledger.Proof) error {
	return s.emit(tx, ListingPurchasedEvent, entity.ListingEvent{Action: entity.ListingPurchased, Listing: listing, Sale: &sale}, emitter)
}

func (s *Sink) emit(tx *ledger.Tx, eventType Type, e entity.ListingEvent, emitter *ledger.Proof) error {
	return tx.Call(s.address, func() error {
		if err := emitter.Check(tx, s.emitter); err != nil {
			return err
		}

		e.Listing = e.Listing.Clone()
		e.TxID = tx.ID()
		e.Time = tx.Now()
		tx.Emit(string(eventType), e)

		return nil
	})
}
