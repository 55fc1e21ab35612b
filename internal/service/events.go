package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lifecycle event types.
const (
	EventSubmissionStarted   = "submission.started"
	EventSubmissionCompleted = "submission.completed"
	EventSubmissionExported  = "submission.exported"
	EventSubmissionDeleted   = "submission.deleted"
)

// SubmissionEvent is the payload fanned out for lifecycle changes.
type SubmissionEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Source       string    `json:"source"`
	SubmissionID uint      `json:"submission_id"`
	SurveyID     uint      `json:"survey_id"`
	OverallScore *int      `json:"overall_score,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher fans lifecycle events out to other processes. Publishing is
// best effort; failures are logged by callers and never fail an operation.
type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent) error
}

type brokerPublisher struct {
	nats        *nats.Conn
	natsSubject string
	redis       *redis.Client
	redisStream string
	nodeID      string
	logger      zerolog.Logger
}

// NewEventPublisher publishes on NATS subject `<base>.<type>` and on the redis
// channel `<base>:events`. Either transport may be nil.
func NewEventPublisher(natsConn *nats.Conn, redisClient *redis.Client, base string, logger zerolog.Logger) EventPublisher {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "frs.submissions"
	}

	return &brokerPublisher{
		nats:        natsConn,
		natsSubject: strings.ReplaceAll(base, ":", "."),
		redis:       redisClient,
		redisStream: strings.ReplaceAll(base, ".", ":") + ":events",
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event SubmissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Source == "" {
		event.Source = p.nodeID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject+"."+strings.TrimPrefix(event.Type, "submission."), payload); err != nil {
			errs = append(errs, err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisStream, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, SubmissionEvent) error { return nil }
