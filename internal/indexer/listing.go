package indexer

import (
	"github.com/ZilDuck/opentrade/internal/dev"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"go.uber.org/zap"
)

type ListingIndexer interface {
	IndexEvent(e entity.ListingEvent)
	IndexRejection(r event.Rejection)
}

type listingIndexer struct {
	elastic elastic_cache.Index
}

func NewListingIndexer(elastic elastic_cache.Index) ListingIndexer {
	return listingIndexer{elastic}
}

func (i listingIndexer) IndexEvent(e entity.ListingEvent) {
	zap.L().With(
		zap.String("action", string(e.Action)),
		zap.String("txId", string(e.TxID)),
		zap.String("asset", e.Listing.Asset.String()),
		zap.String("trader", e.Listing.TraderAccount.String()),
	).Info("ListingIndexer: Index listing event")

	doc := entity.ListingDocument{
		Listing:   e.Listing,
		Status:    statusOf(e.Action),
		UpdatedIn: e.TxID,
		UpdatedAt: e.Time,
	}

	if e.Action == entity.ListingCreated {
		i.elastic.AddIndexRequest(elastic_cache.ListingIndex.Get(), doc)
	} else {
		i.elastic.AddUpdateRequest(elastic_cache.ListingIndex.Get(), doc)
	}

	if e.Sale != nil {
		i.elastic.AddIndexRequest(elastic_cache.SaleIndex.Get(), *e.Sale)
	}
}

// IndexRejection writes the rejection straight away, rejections are not
// batched with listing documents.
func (i listingIndexer) IndexRejection(r event.Rejection) {
	zap.L().With(zap.String("txId", string(r.TxID)), zap.Error(r.Err)).Info("ListingIndexer: Index rejected transaction")

	doc := dev.NewError("ledger", "TransactionRejected", r.Err, map[string]interface{}{"txId": r.TxID})
	if err := i.elastic.Save(elastic_cache.RejectionIndex.Get(), doc); err != nil {
		zap.L().With(zap.Error(err), zap.String("txId", string(r.TxID))).Error("ListingIndexer: Failed to save rejection")
	}
}

func statusOf(action entity.ListingAction) entity.ListingStatus {
	switch action {
	case entity.ListingPurchased:
		return entity.StatusSold
	case entity.ListingCanceled:
		return entity.StatusCanceled
	default:
		return entity.StatusActive
	}
}
