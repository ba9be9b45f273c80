// Package consumer applies transaction-completion events to wallet balances.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wallet-service/config"
	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "wallet-service/consumer"

// Outcomes recorded on the wallet.events.processed counter.
const (
	OutcomeApplied          = "applied"
	OutcomeDuplicate        = "duplicate"
	OutcomeDiscarded        = "discarded"
	OutcomeDeadLettered     = "dead_lettered"
	OutcomeDeadLetterFailed = "dead_letter_failed"
	OutcomeInterrupted      = "interrupted"
)

// Reconciler reads transaction events and applies each one to the receiver's
// wallet exactly once. Offsets are committed only after an event is applied,
// discarded or dead-lettered.
type Reconciler struct {
	connector   ports.SourceConnector
	balances    ports.BalanceService
	deadLetters ports.DeadLetterSink
	cfg         config.ConsumerConfig
	currency    string
	log         zerolog.Logger

	tracer     trace.Tracer
	processed  metric.Int64Counter
	reconnects metric.Int64Counter
}

// NewReconciler creates a Reconciler. Instruments come from the global otel
// providers, which are no-op unless telemetry is enabled.
func NewReconciler(
	connector ports.SourceConnector,
	balances ports.BalanceService,
	deadLetters ports.DeadLetterSink,
	cfg config.ConsumerConfig,
	currency string,
	log zerolog.Logger,
) *Reconciler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	meter := otel.Meter(instrumentationName)
	processed, err := meter.Int64Counter("wallet.events.processed",
		metric.WithDescription("Transaction events handled by the reconciler, by outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create processed counter")
	}
	reconnects, err := meter.Int64Counter("wallet.consumer.reconnects",
		metric.WithDescription("Event source reconnect attempts"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create reconnect counter")
	}

	return &Reconciler{
		connector:   connector,
		balances:    balances,
		deadLetters: deadLetters,
		cfg:         cfg,
		currency:    currency,
		log:         log,
		tracer:      otel.Tracer(instrumentationName),
		processed:   processed,
		reconnects:  reconnects,
	}
}

// Run starts workers readers and blocks until ctx is cancelled. Each worker
// owns its own event source and handles its messages sequentially.
func (r *Reconciler) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.runWorker(ctx, r.log.With().Int("worker", id).Logger())
		}(i)
	}
	wg.Wait()
	r.log.Info().Msg("reconciler stopped")
}

// runWorker reconnects at a fixed rate for as long as ctx lives.
func (r *Reconciler) runWorker(ctx context.Context, log zerolog.Logger) {
	for ctx.Err() == nil {
		source, err := backoff.Retry(ctx,
			func() (ports.EventSource, error) { return r.connector.Connect(ctx) },
			backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.ReconnectInterval)),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				r.addReconnect(ctx)
				log.Warn().Err(err).Dur("retry_in", next).Msg("event source unavailable, reconnecting")
			}),
		)
		if err != nil {
			return
		}
		log.Info().Msg("event source connected")

		err = r.consume(ctx, source, log)
		if cerr := source.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close event source")
		}
		if ctx.Err() != nil {
			return
		}

		r.addReconnect(ctx)
		log.Warn().Err(err).Dur("retry_in", r.cfg.ReconnectInterval).Msg("event source lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.ReconnectInterval):
		}
	}
}

// consume returns when the source fails, a commit fails, or a dead letter
// cannot be stored. In all three cases the last offset stays uncommitted.
func (r *Reconciler) consume(ctx context.Context, source ports.EventSource, log zerolog.Logger) error {
	for {
		msg, err := source.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		if err := r.Handle(ctx, msg); err != nil {
			return err
		}
		if err := source.Commit(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
		log.Debug().Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("offset committed")
	}
}

// Handle processes one message. A nil return means the offset may be committed.
func (r *Reconciler) Handle(ctx context.Context, msg ports.Message) error {
	ctx, span := r.tracer.Start(ctx, "wallet.reconcile",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	outcome, err := r.process(ctx, msg)
	span.SetAttributes(attribute.String("wallet.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if r.processed != nil {
		r.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return err
}

func (r *Reconciler) process(ctx context.Context, msg ports.Message) (string, error) {
	log := r.log.With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	var event domain.TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Warn().Err(err).Msg("discarding malformed event")
		return OutcomeDiscarded, nil
	}

	adj, reason := event.Validate(r.currency)
	if reason != "" {
		log.Info().
			Str("transaction_id", event.TransactionID).
			Str("reason", string(reason)).
			Msg("discarding event")
		return OutcomeDiscarded, nil
	}
	log = log.With().
		Str("transaction_id", adj.TransactionID).
		Str("wallet_id", adj.WalletID.String()).
		Logger()

	attempts := 0
	applied, err := backoff.Retry(ctx,
		func() (bool, error) {
			attempts++
			_, applied, err := r.balances.ApplyTransaction(ctx, *adj)
			if err != nil && apperror.IsPermanent(err) {
				return false, backoff.Permanent(err)
			}
			return applied, err
		},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", next).Msg("apply failed, retrying")
		}),
	)
	if err == nil {
		if !applied {
			log.Info().Msg("duplicate event acknowledged")
			return OutcomeDuplicate, nil
		}
		return OutcomeApplied, nil
	}

	// Shutdown mid-retry: leave the offset for the next owner of the partition.
	if ctx.Err() != nil {
		return OutcomeInterrupted, ctx.Err()
	}

	letter := ports.DeadLetter{
		Message:  msg,
		Reason:   err.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	if dlErr := r.deadLetters.Send(ctx, letter); dlErr != nil {
		log.Error().Err(dlErr).AnErr("cause", err).Msg("failed to dead-letter event")
		return OutcomeDeadLetterFailed, fmt.Errorf("dead-letter: %w", errors.Join(dlErr, err))
	}
	log.Error().Err(err).Int("attempts", attempts).Msg("event dead-lettered")
	return OutcomeDeadLettered, nil
}

func (r *Reconciler) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	return b
}

func (r *Reconciler) addReconnect(ctx context.Context) {
	if r.reconnects != nil {
		r.reconnects.Add(ctx, 1)
	}
}
