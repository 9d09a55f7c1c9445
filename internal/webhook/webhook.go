package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"io"
	"net/http"
)

const AccessKeyHeader = "AccessKey"

// Service posts listing events to every configured url.
type Service interface {
	Listen(events *event.Manager)
	NotifyFromEvent(el interface{})
	Notify(e entity.ListingEvent) error
}

type service struct {
	urls      []string
	accessKey string
	client    *retryablehttp.Client
}

func NewService(urls []string, accessKey string, client *retryablehttp.Client) Service {
	return service{urls, accessKey, client}
}

func NewClient(retries int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.Logger = nil

	return client
}

func (s service) Listen(events *event.Manager) {
	events.AddEventsListener(s.NotifyFromEvent, event.ListingEvents()...)
}

func (s service) NotifyFromEvent(el interface{}) {
	e, ok := el.(entity.ListingEvent)
	if !ok {
		zap.L().With(zap.Any("el", el)).Warn("Webhook: Unknown event payload")
		return
	}

	_ = s.Notify(e)
}

// Notify posts e to every url. A failing url does not stop delivery to the
// others; the returned error joins every failure.
func (s service) Notify(e entity.ListingEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	var errs []error
	for _, url := range s.urls {
		if err := s.post(url, body); err != nil {
			zap.L().With(
				zap.Error(err),
				zap.String("url", url),
				zap.String("txId", string(e.TxID)),
				zap.String("action", string(e.Action)),
			).Error("Webhook: Failed to deliver event")
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}

	zap.L().With(
		zap.String("txId", string(e.TxID)),
		zap.String("action", string(e.Action)),
		zap.Int("urls", len(s.urls)-len(errs)),
	).Info("Webhook: Event delivered")

	return errors.Join(errs...)
}

func (s service) post(url string, body []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.accessKey != "" {
		req.Header.Set(AccessKeyHeader, s.accessKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status code %d", resp.StatusCode)
	}

	return nil
}
