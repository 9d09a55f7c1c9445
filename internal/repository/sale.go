package repository

import (
	"encoding/json"
	"github.com/ZilDuck/opentrade/internal/elastic_cache"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

type SaleRepository interface {
	GetSalesByCollection(collection ledger.Address, size, page int) ([]entity.Sale, int64, error)
	GetSalesByTrader(trader ledger.Address, size, page int) ([]entity.Sale, int64, error)
}

type saleRepository struct {
	elastic elastic_cache.Index
}

func NewSaleRepository(elastic elastic_cache.Index) SaleRepository {
	return saleRepository{elastic}
}

func (r saleRepository) GetSalesByCollection(collection ledger.Address, size, page int) ([]entity.Sale, int64, error) {
	return r.page(elastic.NewTermQuery("asset.resource", collection), size, page)
}

func (r saleRepository) GetSalesByTrader(trader ledger.Address, size, page int) ([]entity.Sale, int64, error) {
	return r.page(elastic.NewTermQuery("traderAccount", trader), size, page)
}

func (r saleRepository) page(query elastic.Query, size, page int) ([]entity.Sale, int64, error) {
	result, err := search(r.elastic.GetClient().
		Search(elastic_cache.SaleIndex.Get()).
		Query(query).
		Sort("time", false).
		TrackTotalHits(true).
		Size(size).
		From(size*page - size))

	sales := make([]entity.Sale, 0)
	if err != nil {
		return sales, 0, err
	}

	for _, hit := range result.Hits.Hits {
		var sale entity.Sale
		if err := json.Unmarshal(hit.Source, &sale); err != nil {
			zap.L().With(zap.Error(err), zap.String("id", hit.Id)).Error("SaleRepository: Failed to unmarshal sale")
			continue
		}
		sales = append(sales, sale)
	}

	return sales, result.TotalHits(), nil
}
