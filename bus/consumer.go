package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Handler handles one inbound event. Each event runs on its own goroutine.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// Consumer reads inbound events from a consumer group
type Consumer struct {
	group      sarama.ConsumerGroup
	topic      string
	retryDelay time.Duration
	closed     chan struct{}
	closeOnce  sync.Once
	inflight   sync.WaitGroup
}

// NewConsumer joins the consumer group
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	// commands are only useful while fresh
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group: %w", err)
	}
	return NewConsumerFrom(group, topic), nil
}

// NewConsumerFrom wraps an existing consumer group
func NewConsumerFrom(group sarama.ConsumerGroup, topic string) *Consumer {
	return &Consumer{
		group:      group,
		topic:      topic,
		retryDelay: 5 * time.Second,
		closed:     make(chan struct{}),
	}
}

// Run consumes until ctx ends or Close is called, then waits for the
// handlers still running
func (c *Consumer) Run(ctx context.Context, h Handler) {
	defer c.inflight.Wait()

	handler := &groupHandler{ctx: ctx, handler: h, closed: c.closed, inflight: &c.inflight}
	for {
		select {
		case <-ctx.Done():
			log.Info("Consumer: context cancelled, stopping")
			return
		case <-c.closed:
			log.Info("Consumer: received close signal, stopping")
			return
		default:
		}

		log.Debug("Consumer: starting consumption cycle")
		err := c.group.Consume(ctx, []string{c.topic}, handler)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Warnf("Consume error: %v, retrying in %v", err, c.retryDelay)
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// Close stops consuming and leaves the group
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	ctx      context.Context
	handler  Handler
	closed   <-chan struct{}
	inflight *sync.WaitGroup
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			ev, err := DecodeEvent(msg.Value)
			if err != nil {
				log.Warnf("Dropping message at offset %d: %v", msg.Offset, err)
			} else {
				h.inflight.Add(1)
				go func() {
					defer h.inflight.Done()
					h.handler.HandleEvent(h.ctx, ev)
				}()
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
