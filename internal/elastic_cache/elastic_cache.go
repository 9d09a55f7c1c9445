package elastic_cache

import (
	"context"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/log"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"github.com/sha1sum/aws_signing_client"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Index buffers documents in a cache keyed by slug and writes them to
// Elasticsearch in bulk.
type Index interface {
	GetClient() *elastic.Client

	InstallMappings() error

	AddIndexRequest(index string, entity entity.Entity)
	AddUpdateRequest(index string, entity entity.Entity)

	Save(index string, entity entity.Entity) error
	BatchPersist() bool
	Persist() int
}

type index struct {
	client *elastic.Client
	cache  *cache.Cache
	cfg    config.ElasticSearchConfig
}

type Request struct {
	Index  string
	Entity entity.Entity
	Type   RequestType
}

type RequestType string

var (
	IndexRequest  RequestType = "index"
	UpdateRequest RequestType = "update"
)

const (
	saveAttempts  int = 3
	batchRequests int = 500
)

func New(cfg config.ElasticSearchConfig, awsCfg config.AwsConfig) (Index, error) {
	client, err := newClient(cfg, awsCfg)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticCache: Failed to create client")
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

func NewWithClient(client *elastic.Client, cfg config.ElasticSearchConfig) Index {
	return index{client, cache.New(5*time.Minute, 10*time.Minute), cfg}
}

func newClient(cfg config.ElasticSearchConfig, awsCfg config.AwsConfig) (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(strings.Join(cfg.Hosts, ",")),
		elastic.SetSniff(cfg.Sniff),
		elastic.SetHealthcheck(cfg.HealthCheck),
	}

	if cfg.Debug {
		opts = append(opts, elastic.SetTraceLog(log.ElasticLogger{}))
	}

	if cfg.Aws {
		creds := credentials.NewStaticCredentials(awsCfg.AccessKey, awsCfg.SecretKey, awsCfg.Token)
		awsClient, err := aws_signing_client.New(v4.NewSigner(creds), nil, "es", awsCfg.Region)
		if err != nil {
			return nil, err
		}

		opts = append(opts, elastic.SetHttpClient(awsClient))
		opts = append(opts, elastic.SetScheme("https"))
		return elastic.NewClient(opts...)
	}

	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	return elastic.NewClient(opts...)
}

func (i index) GetClient() *elastic.Client {
	return i.client
}

// InstallMappings creates one index per mapping file, named after the file.
func (i index) InstallMappings() error {
	zap.L().With(zap.String("dir", i.cfg.MappingDir)).Info("ElasticCache: Install Mappings")

	files, err := os.ReadDir(i.cfg.MappingDir)
	if err != nil {
		return fmt.Errorf("elastic mappings directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		b, err := os.ReadFile(filepath.Join(i.cfg.MappingDir, f.Name()))
		if err != nil {
			return fmt.Errorf("elastic mapping %s: %w", f.Name(), err)
		}

		name := Indices(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))).Get()
		if err = i.createIndex(name, b); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}

	return nil
}

func (i index) createIndex(index string, mapping []byte) error {
	ctx := context.Background()
	client := i.client

	exists, err := client.IndexExists(index).Do(ctx)
	if err != nil {
		return err
	}

	if exists && config.Get().Reindex {
		zap.S().Infof("ElasticCache: Deleting index %s", index)
		if _, err = client.DeleteIndex(index).Do(ctx); err != nil {
			return err
		}
		exists = false
	}

	if !exists {
		createIndex, err := client.CreateIndex(index).BodyString(string(mapping)).Do(ctx)
		if err != nil {
			return err
		}

		if createIndex.Acknowledged {
			zap.S().Infof("ElasticCache: Created index %s", index)
		}
	}

	return nil
}

func (i index) AddIndexRequest(index string, entity entity.Entity) {
	i.addRequest(index, entity, IndexRequest)
}

func (i index) AddUpdateRequest(index string, entity entity.Entity) {
	i.addRequest(index, entity, UpdateRequest)
}

func (i index) addRequest(index string, entity entity.Entity, reqType RequestType) {
	zap.L().With(
		zap.String("index", index),
		zap.String("type", string(reqType)),
		zap.String("slug", entity.Slug())).Debug("ElasticCache: AddRequest")

	// an update of a document that is still waiting to be indexed replaces it
	if cached, found := i.cache.Get(entity.Slug()); found && cached.(Request).Type == IndexRequest {
		reqType = IndexRequest
	}

	i.cache.Set(entity.Slug(), Request{index, entity, reqType}, cache.DefaultExpiration)
}

func (i index) requests() []Request {
	requests := make([]Request, 0)

	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i index) Save(index string, entity entity.Entity) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		_, err = i.client.Index().
			Index(index).
			Id(entity.Slug()).
			BodyJson(entity).
			Refresh(i.cfg.Refresh).
			Do(context.Background())
		if err == nil {
			return nil
		}

		zap.L().With(zap.Error(err), zap.String("index", index), zap.String("slug", entity.Slug()), zap.Int("attempt", attempt)).
			Warn("ElasticCache: Failed to save entity")
		time.Sleep(time.Duration(attempt) * time.Second)
	}

	return err
}

func (i index) BatchPersist() bool {
	if i.cache.ItemCount() < batchRequests {
		return false
	}

	actions := i.cache.ItemCount()
	start := time.Now()
	i.Persist()

	zap.L().With(
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("actions", actions),
	).Info("ElasticCache: Persisting data")

	return true
}

// Persist writes every buffered request and returns how many were sent.
// Callers serialise Persist with the Add*Request calls.
func (i index) Persist() int {
	requests := i.requests()

	bulk := i.client.Bulk().Refresh(i.cfg.Refresh)
	for _, r := range requests {
		switch r.Type {
		case IndexRequest:
			bulk.Add(elastic.NewBulkIndexRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))
		case UpdateRequest:
			bulk.Add(elastic.NewBulkUpdateRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))
		}

		if bulk.NumberOfActions() >= i.cfg.BulkPersistCount {
			i.persist(bulk)
			bulk = i.client.Bulk().Refresh(i.cfg.Refresh)
		}
	}

	if bulk.NumberOfActions() != 0 {
		i.persist(bulk)
	}
	i.cache.Flush()

	return len(requests)
}

func (i index) persist(bulk *elastic.BulkService) {
	zap.S().Debugf("ElasticCache: Persisting %d actions", bulk.NumberOfActions())

	response, err := bulk.Do(context.Background())
	for attempt := 1; elastic.IsStatusCode(err, 429) && attempt < saveAttempts; attempt++ {
		zap.L().With(zap.Error(err), zap.Int("attempt", attempt)).Warn("ElasticCache: 429 (Too Many Requests)")
		time.Sleep(time.Duration(attempt) * 5 * time.Second)
		response, err = bulk.Do(context.Background())
	}
	if err != nil {
		zap.L().With(zap.Error(err), zap.Int("actions", bulk.NumberOfActions())).Error("ElasticCache: Failed to persist requests")
		return
	}

	if response.Errors {
		for _, failed := range response.Failed() {
			zap.L().With(
				zap.Any("error", failed.Error),
				zap.String("index", failed.Index),
				zap.String("id", failed.Id),
			).Error("ElasticCache: Failed to persist request")
		}
	}
}
