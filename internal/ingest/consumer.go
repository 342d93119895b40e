package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/event"
	"github.com/technosupport/ts-nms/internal/metrics"
	"github.com/technosupport/ts-nms/internal/persist"
)

// Processor is the persistence engine as seen by the consumer.
type Processor interface {
	Process(ctx context.Context, e *event.Event) (*persist.Result, error)
}

// Consumer pulls normalized event envelopes off a NATS queue subscription
// and feeds them to a pool of workers. Each worker processes distinct
// events concurrently; the reduction invariant is enforced by the store,
// not by any in-process lock.
type Consumer struct {
	nc      *nats.Conn
	subject string
	queue   string
	workers int
	proc    Processor
	dedup   *Dedup
	log     *zap.Logger
	rec     *metrics.Recorder

	msgs chan *nats.Msg
	sub  *nats.Subscription
	wg   sync.WaitGroup
}

func NewConsumer(nc *nats.Conn, subject, queue string, workers int, proc Processor, dedup *Dedup, log *zap.Logger, rec *metrics.Recorder) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		nc:      nc,
		subject: subject,
		queue:   queue,
		workers: workers,
		proc:    proc,
		dedup:   dedup,
		log:     log,
		rec:     rec,
		msgs:    make(chan *nats.Msg, workers*4),
	}
}

// Start subscribes and launches the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.nc.ChanQueueSubscribe(c.subject, c.queue, c.msgs)
	if err != nil {
		return err
	}
	c.sub = sub

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-c.msgs:
					if !ok {
						return
					}
					c.handle(ctx, msg)
				}
			}
		}()
	}

	c.log.Info("event consumer started",
		zap.String("subject", c.subject),
		zap.String("queue", c.queue),
		zap.Int("workers", c.workers))
	return nil
}

// Stop unsubscribes and drains the workers.
func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	close(c.msgs)
	c.wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.log.Error("dropping undecodable event envelope", zap.Error(err))
		return
	}
	if env.Event == nil {
		c.log.Warn("dropping envelope without event payload", zap.String("msg_id", env.ID))
		return
	}
	if env.ID != "" && c.dedup != nil && c.dedup.Seen(ctx, env.ID) {
		if c.rec != nil {
			c.rec.DuplicateDropped()
		}
		c.log.Debug("dropping redelivered envelope", zap.String("msg_id", env.ID))
		return
	}

	res, err := c.proc.Process(ctx, env.Event)
	if err != nil {
		// No internal retry: a fatal failure for one event must not block
		// the others, and the upstream queue owns the retry policy.
		c.log.Error("event persistence failed",
			zap.String("msg_id", env.ID),
			zap.String("uei", env.Event.UEI),
			zap.Error(err))
		return
	}

	c.log.Debug("event processed",
		zap.String("msg_id", env.ID),
		zap.Int64("event_id", res.EventID),
		zap.Int64("alarm_id", res.AlarmID),
		zap.Bool("reduced", res.Reduced))
}
