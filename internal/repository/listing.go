package repository

import (
	"encoding/json"
	"errors"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

var (
	ErrListingNotFound = errors.New("listing not found")
)

type ListingRepository interface {
	GetListing(asset ledger.GlobalID) (*entity.ListingDocument, error)
	GetListingsByTrader(trader ledger.Address, status entity.ListingStatus, size, page int) ([]entity.ListingDocument, int64, error)
}

type listingRepository struct {
	elastic elastic_cache.Index
}

func NewListingRepository(elastic elastic_cache.Index) ListingRepository {
	return listingRepository{elastic}
}

func (r listingRepository) GetListing(asset ledger.GlobalID) (*entity.ListingDocument, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("asset.resource", asset.Resource),
		elastic.NewTermQuery("asset.localId", asset.Local),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_cache.ListingIndex.Get()).
		Query(query).
		Size(1))

	return r.findOne(result, err)
}

// GetListingsByTrader pages through the listings of a trader account. An
// empty status matches every status.
func (r listingRepository) GetListingsByTrader(trader ledger.Address, status entity.ListingStatus, size, page int) ([]entity.ListingDocument, int64, error) {
	query := elastic.NewBoolQuery().Must(elastic.NewTermQuery("traderAccount", trader))
	if status != "" {
		query = query.Must(elastic.NewTermQuery("status", status))
	}

	from := size*page - size

	zap.L().With(
		zap.String("trader", trader.String()),
		zap.String("status", string(status)),
		zap.Int("size", size),
		zap.Int("page", page),
	).Debug("ListingRepository: GetListingsByTrader")

	result, err := search(r.elastic.GetClient().
		Search(elastic_cache.ListingIndex.Get()).
		Query(query).
		Sort("updatedAt", false).
		TrackTotalHits(true).
		Size(size).
		From(from))

	return r.findMany(result, err)
}

func (r listingRepository) findOne(results *elastic.SearchResult, err error) (*entity.ListingDocument, error) {
	if err != nil {
		return nil, err
	}

	if len(results.Hits.Hits) == 0 {
		return nil, ErrListingNotFound
	}

	var doc entity.ListingDocument
	if err = json.Unmarshal(results.Hits.Hits[0].Source, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r listingRepository) findMany(results *elastic.SearchResult, err error) ([]entity.ListingDocument, int64, error) {
	docs := make([]entity.ListingDocument, 0)
	if err != nil {
		return docs, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var doc entity.ListingDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			zap.L().With(zap.Error(err), zap.String("id", hit.Id)).Error("ListingRepository: Failed to unmarshal listing")
			continue
		}
		docs = append(docs, doc)
	}

	return docs, results.TotalHits(), nil
}
