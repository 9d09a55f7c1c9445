package indexer

import (
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"go.uber.org/zap"
	"sync"
)

// Indexer mirrors committed listing events and rejected transactions into
// the search index. Listing documents are buffered and written in batches,
// Flush writes whatever is still buffered.
type Indexer interface {
	Listen(events *event.Manager)
	Handle(msg interface{})
	Flush() int
}

type indexer struct {
	mu             sync.Mutex
	elastic        elastic_cache.Index
	listingIndexer ListingIndexer
}

func NewIndexer(elastic elastic_cache.Index, listingIndexer ListingIndexer) Indexer {
	return &indexer{elastic: elastic, listingIndexer: listingIndexer}
}

func (i *indexer) Listen(events *event.Manager) {
	types := append(event.ListingEvents(), event.TransactionRejectedEvent)
	events.AddEventsListener(i.Handle, types...)
}

func (i *indexer) Handle(msg interface{}) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch m := msg.(type) {
	case entity.ListingEvent:
		i.listingIndexer.IndexEvent(m)
		i.elastic.BatchPersist()
	case event.Rejection:
		i.listingIndexer.IndexRejection(m)
	default:
		zap.L().With(zap.Any("msg", msg)).Warn("Indexer: Unknown event payload")
	}
}

func (i *indexer) Flush() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	actions := i.elastic.Persist()
	if actions != 0 {
		zap.L().With(zap.Int("actions", actions)).Debug("Indexer: Persisted")
	}

	return actions
}
