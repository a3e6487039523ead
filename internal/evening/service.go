// Package evening runs commands against evening aggregates and derives the
// events, jobs and scroll-block flag that follow from each accepted transition.
package evening

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/evening-ritual/internal/domain"
	"github.com/ashureev/evening-ritual/internal/machine"
	"github.com/ashureev/evening-ritual/internal/store"
)

const tracerName = "github.com/ashureev/evening-ritual/internal/evening"

// EventEmitter records emitted events.
type EventEmitter interface {
	Emit(eventType domain.EventType, payload domain.Payload) domain.EventRecord
}

// JobEnqueuer records queued jobs.
type JobEnqueuer interface {
	Enqueue(jobType domain.JobType, payload domain.Payload) domain.JobRecord
}

// Request is one decoded client command.
type Request struct {
	SessionID string
	UserID    string
	Command   domain.Command
	Reason    domain.ExtensionReason
	// IdempotencyKey is accepted from clients but duplicates are not detected.
	IdempotencyKey string
}

// Service applies commands. It holds no per-session state; all of it lives in the repository.
type Service struct {
	repo   store.Repository
	events EventEmitter
	jobs   JobEnqueuer
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a command service over the given collaborators.
func NewService(repo store.Repository, events EventEmitter, jobs JobEnqueuer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		events: events,
		jobs:   jobs,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute loads (or creates) the aggregate addressed by req and applies its command.
func (s *Service) Execute(ctx context.Context, req Request) (*domain.CommandResponse, error) {
	agg, err := s.repo.GetOrCreate(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load evening: %w", err)
	}
	if req.IdempotencyKey != "" {
		s.logger.Debug("idempotency key received",
			"session_id", req.SessionID, "user_id", req.UserID, "idempotency_key", req.IdempotencyKey)
	}
	return s.Apply(ctx, agg, req.Command, req.Reason)
}

// Snapshot returns the current view of an aggregate, creating it if needed.
func (s *Service) Snapshot(ctx context.Context, sessionID, userID string) (domain.Snapshot, error) {
	agg, err := s.repo.GetOrCreate(ctx, sessionID, userID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load evening: %w", err)
	}
	return SnapshotOf(agg), nil
}

// Apply runs command against agg, persists the result and reports what happened.
//
// The aggregate is always saved with a fresh updated_at, even when the command
// is rejected. agg is only updated in place once the save succeeds. An error
// means nothing about the request can be trusted: either the stored state is
// corrupt or the repository failed.
func (s *Service) Apply(ctx context.Context, agg *domain.Aggregate, command domain.Command, reason domain.ExtensionReason) (*domain.CommandResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evening.apply", trace.WithAttributes(
		attribute.String("evening.session_id", agg.SessionID),
		attribute.String("evening.user_id", agg.UserID),
		attribute.String("evening.command", string(command)),
	))
	defer span.End()

	work := agg.Clone()
	prev := work.State

	res, err := machine.Transition(work.State, command, work.Context, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		s.logger.Error("transition failed",
			"session_id", work.SessionID, "user_id", work.UserID, "command", command, "error", err)
		return nil, fmt.Errorf("apply %s: %w", command, err)
	}

	work.State = res.State
	work.Context = res.Context
	work.UpdatedAt = s.now()

	resp := &domain.CommandResponse{
		Accepted:      res.Accepted,
		ErrorCode:     res.ErrorCode,
		EmittedEvents: []domain.EventRecord{},
		QueuedJobs:    []domain.JobRecord{},
	}

	if res.Accepted {
		resp.EmittedEvents = append(resp.EmittedEvents, s.emitCommandEvents(prev, work.State, command, reason)...)

		rules := matchingRules(prev, work.State)
		payload := domain.Payload{"session_id": work.SessionID, "user_id": work.UserID}
		for _, r := range rules {
			for _, et := range r.Events {
				resp.EmittedEvents = append(resp.EmittedEvents, s.events.Emit(et, payload))
			}
		}
		for _, r := range rules {
			for _, jt := range r.Jobs {
				resp.QueuedJobs = append(resp.QueuedJobs, s.jobs.Enqueue(jt, payload))
			}
		}
		for _, r := range rules {
			if r.Block != nil {
				work.ScrollBlockActive = *r.Block
			}
		}
	}

	if err := s.repo.Save(ctx, work); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, fmt.Errorf("save evening: %w", err)
	}
	*agg = *work

	resp.Snapshot = SnapshotOf(work)

	span.SetAttributes(
		attribute.Bool("evening.accepted", res.Accepted),
		attribute.String("evening.state", string(work.State)),
	)
	if res.Accepted {
		s.logger.Info("command applied",
			"session_id", work.SessionID, "user_id", work.UserID, "command", command,
			"from", prev, "to", work.State,
			"events", len(resp.EmittedEvents), "jobs", len(resp.QueuedJobs))
	} else {
		span.SetAttributes(attribute.String("evening.error_code", res.ErrorCode))
		s.logger.Warn("command rejected",
			"session_id", work.SessionID, "user_id", work.UserID, "command", command,
			"state", work.State, "error_code", res.ErrorCode)
	}

	return resp, nil
}

// emitCommandEvents emits the events tied to the command itself rather than to the state change.
func (s *Service) emitCommandEvents(prev, next domain.State, command domain.Command, reason domain.ExtensionReason) []domain.EventRecord {
	switch command {
	case domain.CommandRequestRestExtension:
		out := []domain.EventRecord{s.events.Emit(domain.EventRestExtended, nil)}
		if reason != domain.ReasonNone {
			out = append(out, s.events.Emit(domain.EventRestExtensionRequestedWithReason, domain.Payload{"reason": string(reason)}))
		}
		return out
	case domain.CommandApplySleepCutoff:
		if prev == next {
			return nil
		}
		return []domain.EventRecord{s.events.Emit(domain.EventSleepCutoffReached, nil)}
	}

	if et, ok := commandEvents[command]; ok {
		return []domain.EventRecord{s.events.Emit(et, nil)}
	}
	return nil
}

// SnapshotOf builds the client view of agg.
func SnapshotOf(agg *domain.Aggregate) domain.Snapshot {
	return domain.Snapshot{
		SessionID:         agg.SessionID,
		UserID:            agg.UserID,
		Status:            agg.State,
		Context:           agg.Context,
		ScrollBlockActive: agg.ScrollBlockActive,
		UpdatedAt:         agg.UpdatedAt,
		AllowedActions:    machine.AllowedActions(agg.State),
	}
}
