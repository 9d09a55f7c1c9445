package elastic_cache

import (
	"fmt"
	"github.com/ZilDuck/opentrade/internal/config"
)

type Indices string

var (
	ListingIndex   Indices = "listing"
	SaleIndex      Indices = "sale"
	RejectionIndex Indices = "rejection"
)

// Get prefixes the index with the network and index name
func (i Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(i))
}

func All() []Indices {
	return []Indices{
		ListingIndex,
		SaleIndex,
		RejectionIndex,
	}
}
