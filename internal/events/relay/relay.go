// Package relay drains the badge_events outbox into a Kafka topic so
// off-chain indexers observe claims, deployments and ownership changes.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"chronostamp/pkg/platform/circuit"
)

// openBackoff multiplies the poll interval while the broker circuit is open.
const openBackoff = 10

// Pending is an outbox row not yet acknowledged by the broker.
type Pending struct {
	Seq     int64
	Kind    string
	Source  string
	Payload []byte
}

// Outbox claims a batch of pending rows. fn runs while the rows are locked;
// returning nil marks them published, an error leaves them pending.
type Outbox interface {
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, batch []Pending) error) (int, error)
}

// Producer is the subset of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	breaker   *circuit.Breaker
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBreaker replaces the default broker circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

func New(outbox Outbox, producer Producer, topic string, opts ...Option) (*Relay, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox is required")
	}
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
		breaker:   circuit.New("kafka-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch triggers an immediate
// follow-up poll; repeated broker failures open the circuit and stretch the
// poll interval until produces succeed again.
func (r *Relay) Run(ctx context.Context) error {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		n, err := r.Flush(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			if _, change := r.breaker.RecordFailure(); change.Opened {
				r.logger.WarnContext(ctx, "event relay circuit opened",
					"breaker", r.breaker.Name(),
					"error", err,
				)
			} else {
				r.logger.WarnContext(ctx, "outbox relay flush failed", "error", err)
			}
		case err == nil && n > 0:
			if _, change := r.breaker.RecordSuccess(); change.Closed {
				r.logger.InfoContext(ctx, "event relay circuit closed", "breaker", r.breaker.Name())
			}
			if n == r.batchSize && !r.breaker.IsOpen() {
				continue
			}
		}

		timer.Reset(r.nextWait())
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// nextWait is the poll interval, stretched while the broker circuit is open.
func (r *Relay) nextWait() time.Duration {
	if r.breaker.IsOpen() {
		return r.interval * openBackoff
	}
	return r.interval
}

// Flush publishes one batch and returns how many rows it relayed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	return r.outbox.Claim(ctx, r.batchSize, func(ctx context.Context, batch []Pending) error {
		records := make([]*kgo.Record, len(batch))
		for i, p := range batch {
			records[i] = &kgo.Record{
				Topic: r.topic,
				Key:   []byte(p.Source),
				Value: p.Payload,
				Headers: []kgo.RecordHeader{
					{Key: "kind", Value: []byte(p.Kind)},
				},
			}
		}
		if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return fmt.Errorf("produce %d events: %w", len(records), err)
		}
		r.logger.DebugContext(ctx, "relayed badge events", "count", len(records), "topic", r.topic)
		return nil
	})
}
