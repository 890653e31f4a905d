package changes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/lauacosta/GIS-TPI/internal/core/observability"
	mylog "github.com/lauacosta/GIS-TPI/internal/logger"
)

// Refresher drops the cached features of a layer; *layers.Registry
// satisfies it.
type Refresher interface {
	Refresh(layer string) bool
}

type ConsumerConfig struct {
	Brokers             []string
	Topic               string
	GroupID             string
	Workspace           string
	Source              string
	DedupeSize          int
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool

	// Log is the application's zerolog logger; applied-change records are
	// written through it. Nil writes to stdout.
	Log *zerolog.Logger
}

type Consumer struct {
	cfg    ConsumerConfig
	logger *slog.Logger
	ref    Refresher
	seen   *eventDedupe
	zlog   *zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger, ref Refresher) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 3 * time.Second
	}
	if cfg.RebalanceTimeout <= 0 {
		cfg.RebalanceTimeout = 30 * time.Second
	}
	base := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Log != nil {
		base = *cfg.Log
	}
	zl := base.With().Str("component", "changes_consumer").Logger()
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		ref:    ref,
		seen:   newEventDedupe(cfg.DedupeSize),
		zlog:   &zl,
	}
}

// Start consumes change events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.ref == nil {
		return errors.New("changes: consumer without refresher")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("change consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("change consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single message. Malformed events are logged and
// skipped so they do not block the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.reject(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.reject(ctx, msg, "invalid", err)
		return nil
	}

	ctx = mylog.WithLayer(ctx, ev.Layer)
	switch {
	case c.cfg.Source != "" && ev.Source == c.cfg.Source:
		observability.IncChangeEvent("consume", "self")
		return nil
	case c.cfg.Workspace != "" && ev.Workspace != c.cfg.Workspace:
		observability.IncChangeEvent("consume", "foreign")
		return nil
	case !c.seen.firstSeen(ev.ID):
		observability.IncChangeEvent("consume", "duplicate")
		return nil
	}

	if !c.ref.Refresh(ev.Layer) {
		observability.IncChangeEvent("consume", "unknown_layer")
		c.logger.DebugContext(ctx, "change for unknown layer", "layer", ev.Layer)
		return nil
	}
	observability.IncChangeEvent("consume", "applied")
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "refresh").
		Str("op", ev.Op).
		Strs("features", ev.FeatureIDs).
		Msg("layer refreshed by remote change")
	return nil
}

func (c *Consumer) reject(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	observability.IncChangeEvent("consume", kind)
	mylog.FromContext(ctx, c.zlog).Error().
		Err(err).
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("kafka error")
}
