package repository

import (
	"context"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
	"time"
)

const searchAttempts = 3

var throttleDelay = 5 * time.Second

type searcher interface {
	Do(ctx context.Context) (*elastic.SearchResult, error)
}

// search runs a query, backing off while the cluster answers 429.
func search(searchService searcher) (*elastic.SearchResult, error) {
	result, err := searchService.Do(context.Background())
	for attempt := 1; elastic.IsStatusCode(err, 429) && attempt < searchAttempts; attempt++ {
		zap.L().With(zap.Int("attempt", attempt)).Warn("Elastic: 429 (Too Many Requests)")
		time.Sleep(time.Duration(attempt) * throttleDelay)
		result, err = searchService.Do(context.Background())
	}

	return result, err
}
