package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	obs "github.com/mohammed-shakir/botanitours-map/internal/core/observability"
	"github.com/mohammed-shakir/botanitours-map/internal/invalidation"
	mylog "github.com/mohammed-shakir/botanitours-map/internal/logger"
)

// PopupInvalidator drops cached popup descriptions (*popup.Cached).
type PopupInvalidator interface {
	Invalidate(ctx context.Context, kind model.Kind, id int64) error
}

// SessionInvalidator forgets fetched data held by live sessions (*session.Registry).
type SessionInvalidator interface {
	InvalidateExtent(b orb.Bound) int
	InvalidateStatic(file string) int
}

// StaticEvicter drops decoded static files (*staticdata.Loader).
type StaticEvicter interface {
	Evict(name string) bool
}

type Targets struct {
	Popups   PopupInvalidator
	Sessions SessionInvalidator
	Static   StaticEvicter
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	targets Targets
	zlog    *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, targets Targets) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, targets: targets}
}

// consumes invalidation events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.targets.Sessions == nil && c.targets.Popups == nil && c.targets.Static == nil {
		return errors.New("kafkaconsumer: nothing to invalidate")
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

	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	zl := mylog.Build(mylog.Config{
		Level:     c.cfg.LogLevel,
		Service:   "mapserver",
		Component: "kafka_consumer",
	}, nil)
	c.zlog = mylog.FromContext(base, &zl)

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				obs.IncKafkaConsumerError("consume")
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

// ProcessOne applies a single invalidation event. A returned error leaves the
// offset unmarked so the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		// poison message: skip it rather than block the partition
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("validate")
		c.logger.Warn("invalid invalidation event skipped", "offset", msg.Offset, "err", err)
		return nil
	}

	var (
		popups, sessions int
		evicted          bool
	)

	if ev.Kind == invalidation.KindCluster {
		if c.targets.Static != nil {
			evicted = c.targets.Static.Evict(ev.File)
		}
		if c.targets.Sessions != nil {
			sessions = c.targets.Sessions.InvalidateStatic(ev.File)
		}
		obs.ObserveInvalidation(ev.Kind, ev.Op, nil)
		c.logger.Debug("static file invalidated", "file", ev.File, "evicted", evicted, "sessions", sessions)
		return nil
	}

	if ev.ID != nil && c.targets.Popups != nil {
		if err := c.targets.Popups.Invalidate(ctx, model.Kind(ev.Kind), *ev.ID); err != nil {
			obs.IncKafkaConsumerError("redis_del")
			obs.ObserveInvalidation(ev.Kind, ev.Op, err)
			mylog.FromContext(ctx, c.zlog).Error().
				Str("kind", "redis_del").
				Str("topic", msg.Topic).
				Int32("partition", msg.Partition).
				Int64("id", *ev.ID).
				Msg("kafka error")
			return fmt.Errorf("popup invalidate: %w", err)
		}
		popups = 1
	}

	area, ok, err := ev.Area()
	if err != nil {
		obs.ObserveInvalidation(ev.Kind, ev.Op, err)
		return fmt.Errorf("event area: %w", err)
	}
	if ok && c.targets.Sessions != nil {
		sessions = c.targets.Sessions.InvalidateExtent(area)
	}

	obs.ObserveInvalidation(ev.Kind, ev.Op, nil)
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Str("op", ev.Op).Str("kind", ev.Kind).
		Int("popups", popups).Int("sessions", sessions).
		Msg("invalidated")
	return nil
}
