package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/lauacosta/GIS-TPI/internal/core/observability"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

// Publisher sends change events without blocking the transaction path:
// events go through a bounded queue and are dropped when it is full.
type Publisher struct {
	topic  string
	source string
	logger *slog.Logger
	now    func() time.Time

	prod    sarama.AsyncProducer
	events  chan Event
	mu      sync.RWMutex
	closed  bool
	pumped  chan struct{}
	drained chan struct{}

	queued  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewPublisher(brokers []string, topic string, queueSize int, source string, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("changes: create async producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, queueSize, source, logger), nil
}

// NewPublisherWithProducer wraps an existing producer; the publisher owns it
// and closes it on Close.
func NewPublisherWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, source string, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		source:  source,
		logger:  logger,
		now:     time.Now,
		prod:    prod,
		events:  make(chan Event, queueSize),
		pumped:  make(chan struct{}),
		drained: make(chan struct{}),
	}

	go func() {
		defer close(p.pumped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("changes: marshal event", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Workspace + ":" + ev.Layer),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.drained)
		for err := range p.prod.Errors() {
			if err == nil {
				continue
			}
			p.failed.Add(1)
			observability.IncChangeEvent("publish", "error")
			p.logger.Error("changes: producer error", "err", err.Err, "topic", p.topic)
		}
	}()

	return p
}

// Publish queues ev and reports whether it was accepted.
func (p *Publisher) Publish(ev Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.events <- ev:
		p.queued.Add(1)
		observability.IncChangeEvent("publish", "queued")
		return true
	default:
		p.dropped.Add(1)
		observability.IncChangeEvent("publish", "dropped")
		return false
	}
}

// NotifyChange implements wfst.Notifier.
func (p *Publisher) NotifyChange(ctx context.Context, c wfst.Change) {
	ev := FromChange(c, p.source, p.now())
	if !p.Publish(ev) {
		p.logger.WarnContext(ctx, "change event dropped", "layer", c.Layer, "op", string(c.Op))
	}
}

func (p *Publisher) Stats() (queued, dropped, failed uint64) {
	return p.queued.Load(), p.dropped.Load(), p.failed.Load()
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.pumped
	err := p.prod.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("changes: close producer: %w", err)
	}
	return nil
}
