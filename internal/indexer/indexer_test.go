package indexer

import (
	"errors"
	"github.com/ZilDuck/opentrade/internal/dev"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/olivere/elastic/v7"
	"github.com/shopspring/decimal"
	"testing"
	"time"
)

type fakeIndex struct {
	batch     int
	requests  map[string]elastic_cache.Request
	persisted []elastic_cache.Request
	saved     []elastic_cache.Request
}

func newFakeIndex(batch int) *fakeIndex {
	return &fakeIndex{batch: batch, requests: map[string]elastic_cache.Request{}}
}

func (f *fakeIndex) GetClient() *elastic.Client {
	return nil
}

func (f *fakeIndex) InstallMappings() error {
	return nil
}

func (f *fakeIndex) AddIndexRequest(index string, e entity.Entity) {
	f.requests[e.Slug()] = elastic_cache.Request{Index: index, Entity: e, Type: elastic_cache.IndexRequest}
}

func (f *fakeIndex) AddUpdateRequest(index string, e entity.Entity) {
	reqType := elastic_cache.UpdateRequest
	if r, ok := f.requests[e.Slug()]; ok && r.Type == elastic_cache.IndexRequest {
		reqType = elastic_cache.IndexRequest
	}
	f.requests[e.Slug()] = elastic_cache.Request{Index: index, Entity: e, Type: reqType}
}

func (f *fakeIndex) Save(index string, e entity.Entity) error {
	f.saved = append(f.saved, elastic_cache.Request{Index: index, Entity: e, Type: elastic_cache.IndexRequest})
	return nil
}

func (f *fakeIndex) BatchPersist() bool {
	if f.batch == 0 || len(f.requests) < f.batch {
		return false
	}
	f.Persist()
	return true
}

func (f *fakeIndex) Persist() int {
	n := len(f.requests)
	for _, r := range f.requests {
		f.persisted = append(f.persisted, r)
	}
	f.requests = map[string]elastic_cache.Request{}
	return n
}

func listingEvent(action entity.ListingAction, tx ledger.TxID, sale *entity.Sale) entity.ListingEvent {
	return entity.ListingEvent{
		Action: action,
		Listing: entity.Listing{
			Asset:         ledger.NewGlobalID("resource_zil1abc", ledger.IntegerID(7)),
			Currency:      "resource_zil1xyz",
			Price:         decimal.NewFromInt(100),
			TraderAccount: "component_zil1trader",
			CreatedIn:     "tx1",
		},
		Sale: sale,
		TxID: tx,
		Time: time.Now(),
	}
}

func TestListingLifecycleIsIndexed(t *testing.T) {
	index := newFakeIndex(0)
	i := NewIndexer(index, NewListingIndexer(index))

	i.Handle(listingEvent(entity.ListingCreated, "tx1", nil))
	if n := i.Flush(); n != 1 || index.persisted[0].Type != elastic_cache.IndexRequest {
		t.Fatalf("expected one index request, got %+v", index.persisted)
	}
	if doc := index.persisted[0].Entity.(entity.ListingDocument); doc.Status != entity.StatusActive {
		t.Errorf("new listing should be active, got %s", doc.Status)
	}

	sale := &entity.Sale{TxID: "tx2", Asset: ledger.NewGlobalID("resource_zil1abc", ledger.IntegerID(7))}
	i.Handle(listingEvent(entity.ListingPurchased, "tx2", sale))
	if len(index.persisted) != 1 {
		t.Fatal("requests should stay buffered until the batch fills or a flush")
	}
	if n := i.Flush(); n != 2 {
		t.Fatalf("expected listing and sale requests, got %+v", index.persisted)
	}

	var sold, sales int
	for _, r := range index.persisted[1:] {
		switch e := r.Entity.(type) {
		case entity.ListingDocument:
			if e.Status == entity.StatusSold && e.UpdatedIn == "tx2" && r.Type == elastic_cache.UpdateRequest {
				sold++
			}
			if r.Index != elastic_cache.ListingIndex.Get() {
				t.Errorf("listing written to %s", r.Index)
			}
		case entity.Sale:
			sales++
			if r.Index != elastic_cache.SaleIndex.Get() {
				t.Errorf("sale written to %s", r.Index)
			}
		}
	}
	if sold != 1 || sales != 1 {
		t.Errorf("expected a sold listing and a sale, got %d and %d", sold, sales)
	}
}

func TestBufferedListingKeepsLatestState(t *testing.T) {
	index := newFakeIndex(0)
	i := NewIndexer(index, NewListingIndexer(index))

	i.Handle(listingEvent(entity.ListingCreated, "tx1", nil))
	i.Handle(listingEvent(entity.ListingCanceled, "tx3", nil))
	i.Flush()

	if len(index.persisted) != 1 {
		t.Fatalf("expected one document, got %+v", index.persisted)
	}
	r := index.persisted[0]
	if r.Type != elastic_cache.IndexRequest || r.Entity.(entity.ListingDocument).Status != entity.StatusCanceled {
		t.Errorf("expected a canceled listing indexed once, got %+v", r)
	}
}

func TestFullBatchIsPersisted(t *testing.T) {
	index := newFakeIndex(2)
	i := NewIndexer(index, NewListingIndexer(index))

	sale := &entity.Sale{TxID: "tx2", Asset: ledger.NewGlobalID("resource_zil1abc", ledger.IntegerID(7))}
	i.Handle(listingEvent(entity.ListingPurchased, "tx2", sale))
	if len(index.persisted) != 2 {
		t.Errorf("a full batch should be written without a flush, got %+v", index.persisted)
	}
	if n := i.Flush(); n != 0 {
		t.Errorf("nothing should be left to flush, got %d", n)
	}
}

func TestRejectionIsSaved(t *testing.T) {
	index := newFakeIndex(0)
	i := NewIndexer(index, NewListingIndexer(index))

	i.Handle(event.Rejection{TxID: "tx9", Err: errors.New("boom")})
	i.Handle("ignored")

	if len(index.saved) != 1 || i.Flush() != 0 {
		t.Fatalf("expected one saved rejection and nothing buffered, got %+v", index.saved)
	}
	e := index.saved[0].Entity.(dev.Error)
	if e.Error != "boom" || e.Extra["txId"] != ledger.TxID("tx9") || index.saved[0].Index != elastic_cache.RejectionIndex.Get() {
		t.Errorf("unexpected rejection document %+v", e)
	}
}
