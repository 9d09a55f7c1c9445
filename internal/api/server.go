package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"github.com/ZilDuck/opentrade/internal/repository"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

// Reader is the live read side of the protocol.
type Reader interface {
	TraderListings(address ledger.Address) ([]entity.Listing, error)
	CollectionRoyalties(address ledger.Address) (*protocol.RoyaltyReport, error)
	MarketplaceFees(address ledger.Address) (*protocol.FeeReport, error)
}

// Server answers from the live ledger and, when the search index is
// configured, from the indexed history.
type Server struct {
	reader      Reader
	listingRepo repository.ListingRepository
	saleRepo    repository.SaleRepository
}

func NewServer(reader Reader, listingRepo repository.ListingRepository, saleRepo repository.SaleRepository) Server {
	return Server{reader, listingRepo, saleRepo}
}

type page struct {
	Total int64       `json:"total"`
	Size  int         `json:"size"`
	Page  int         `json:"page"`
	Items interface{} `json:"items"`
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHomepage).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/traders/{address}/listings", s.handleTraderListings).Methods("GET")
	r.HandleFunc("/collections/{address}/royalties", s.handleCollectionRoyalties).Methods("GET")
	r.HandleFunc("/marketplaces/{address}/fees", s.handleMarketplaceFees).Methods("GET")
	r.HandleFunc("/index/traders/{address}/listings", s.handleIndexedListings).Methods("GET")
	r.HandleFunc("/index/collections/{address}/sales", s.handleIndexedSales).Methods("GET")
	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	_, _ = fmt.Fprintf(w, "OpenTrade")
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]string{"status": "ok"})
}

func (s Server) handleTraderListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.reader.TraderListings(address(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, listings)
}

func (s Server) handleCollectionRoyalties(w http.ResponseWriter, r *http.Request) {
	report, err := s.reader.CollectionRoyalties(address(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, report)
}

func (s Server) handleMarketplaceFees(w http.ResponseWriter, r *http.Request) {
	report, err := s.reader.MarketplaceFees(address(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, report)
}

func (s Server) handleIndexedListings(w http.ResponseWriter, r *http.Request) {
	if s.listingRepo == nil {
		http.Error(w, "Search index not configured", http.StatusServiceUnavailable)
		return
	}

	size, pageNum := pagination(r)
	status := entity.ListingStatus(r.URL.Query().Get("status"))

	docs, total, err := s.listingRepo.GetListingsByTrader(address(r), status, size, pageNum)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to search listings")
		http.Error(w, "Failed to search listings", http.StatusInternalServerError)
		return
	}

	writeJson(w, page{total, size, pageNum, docs})
}

func (s Server) handleIndexedSales(w http.ResponseWriter, r *http.Request) {
	if s.saleRepo == nil {
		http.Error(w, "Search index not configured", http.StatusServiceUnavailable)
		return
	}

	size, pageNum := pagination(r)

	sales, total, err := s.saleRepo.GetSalesByCollection(address(r), size, pageNum)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to search sales")
		http.Error(w, "Failed to search sales", http.StatusInternalServerError)
		return
	}

	writeJson(w, page{total, size, pageNum, sales})
}

func address(r *http.Request) ledger.Address {
	return ledger.Address(mux.Vars(r)["address"])
}

func pagination(r *http.Request) (int, int) {
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 || size > 100 {
		size = 20
	}

	pageNum, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || pageNum <= 0 {
		pageNum = 1
	}

	return size, pageNum
}

func writeJson(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		zap.L().With(zap.Error(err)).Error("Api: Request failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = fmt.Fprintf(w, "Page not found")
	})
}
