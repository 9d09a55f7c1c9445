package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"sync"
)

var ErrExchangeNotFound = errors.New("exchange not found")

type MessageService interface {
	Listen(events *event.Manager)
	PublishEvent(msg interface{})
	SendMessage(item Item, routingKey string, body []byte, reliable bool) error
	ConsumeMessages(ctx context.Context, item Item, callback func(routingKey string, body []byte)) error
	GetQueueSize(item Item) (int, error)
	Close() error
}

type Messenger struct {
	amqpUri string

	mu   sync.Mutex
	conn *amqp.Connection
}

type Item string

var (
	ListingEvents Item = "listing"
	Rejections    Item = "rejection"
)

func (i Item) queue() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, i)
}

func NewMessenger(amqpUri string) *Messenger {
	return &Messenger{amqpUri: amqpUri}
}

func (m *Messenger) Listen(events *event.Manager) {
	types := append(event.ListingEvents(), event.TransactionRejectedEvent)
	events.AddEventsListener(m.PublishEvent, types...)
}

// PublishEvent forwards a committed event payload to its exchange. Failures
// are logged, the ledger has already committed.
func (m *Messenger) PublishEvent(msg interface{}) {
	var item Item
	var routingKey string
	var payload interface{}

	switch e := msg.(type) {
	case entity.ListingEvent:
		item, routingKey, payload = ListingEvents, fmt.Sprintf("listing.%s", e.Action), e
	case event.Rejection:
		item, routingKey = Rejections, "rejection"
		payload = map[string]string{"txId": string(e.TxID), "error": e.Err.Error()}
	default:
		zap.L().With(zap.Any("msg", msg)).Warn("[Queue] Unknown event payload")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to marshal event")
		return
	}

	if err := m.SendMessage(item, routingKey, body, true); err != nil {
		zap.L().With(zap.Error(err), zap.String("routingKey", routingKey)).Error("[Queue] Failed to publish event")
	}
}

func (m *Messenger) SendMessage(item Item, routingKey string, body []byte, reliable bool) error {
	ex, ok := exchanges[item]
	if !ok {
		zap.L().With(zap.String("item", string(item))).Error("[Queue] Exchange not found")
		return ErrExchangeNotFound
	}

	ch, err := m.openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	var confirms chan amqp.Confirmation
	if reliable {
		if err := ch.Confirm(false); err != nil {
			zap.L().With(zap.Error(err)).Error("[Queue] Channel could not be put into confirm mode")
			return err
		}

		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	publishing := amqp.Publishing{
		Headers:      amqp.Table{},
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	if err = ch.Publish(ex.Name, routingKey, false, false, publishing); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Publish")
		return err
	}

	if confirms != nil && !m.confirmOne(confirms) {
		return fmt.Errorf("publish to %s was not confirmed", ex.Name)
	}

	zap.L().With(zap.String("exchange", ex.Name), zap.String("routingKey", routingKey)).Info("[Queue] Published message")

	return nil
}

// ConsumeMessages binds the item queue to its exchange and hands every
// delivery to callback until ctx is done.
func (m *Messenger) ConsumeMessages(ctx context.Context, item Item, callback func(routingKey string, body []byte)) error {
	ex, ok := exchanges[item]
	if !ok {
		return ErrExchangeNotFound
	}

	ch, err := m.openChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDeleted, ex.Internal, ex.NoWait, ex.Arguments); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Exchange Declare")
		return err
	}

	q, err := ch.QueueDeclare(item.queue(), true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to declare a queue")
		return err
	}

	if err = ch.QueueBind(q.Name, "#", ex.Name, false, nil); err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to bind a queue")
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to consume the queue")
		return err
	}

	zap.S().With(zap.String("exchange", ex.Name)).Debugf("[Queue] Waiting for messages")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, open := <-msgs:
			if !open {
				return errors.New("delivery channel closed")
			}
			zap.L().Debug("[Queue] Received message")
			callback(d.RoutingKey, d.Body)
		}
	}
}

func (m *Messenger) GetQueueSize(item Item) (int, error) {
	ch, err := m.openChannel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare(item.queue(), true, false, false, false, nil)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", item.queue())).Error("[Queue] Failed to create queue")
		return 0, err
	}

	return queue.Messages, nil
}

func (m *Messenger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.conn.IsClosed() {
		return nil
	}

	return m.conn.Close()
}

func (m *Messenger) openConnection() (*amqp.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}

	conn, err := amqp.Dial(m.amqpUri)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("[Queue] Failed to connect to RabbitMQ")
		return nil, err
	}

	m.conn = conn

	return m.conn, nil
}

func (m *Messenger) openChannel() (*amqp.Channel, error) {
	conn, err := m.openConnection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		zap.S().With(zap.Error(err)).Error("[Queue] Failed to open channel")
	}

	return ch, err
}

func (m *Messenger) confirmOne(confirms <-chan amqp.Confirmation) bool {
	zap.L().Debug("[Queue] Waiting for publish confirmation")

	if confirmed := <-confirms; confirmed.Ack {
		zap.L().Debug("[Queue] Publish confirmed")
		return true
	}

	zap.L().Debug("[Queue] Publish failed")
	return false
}
