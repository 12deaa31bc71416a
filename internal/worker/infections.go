package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidjournal/backend/pkg/queue"
)

type checkinMarker interface {
	MarkPotentialInfections(ctx context.Context, placeIDs []uuid.UUID, start, end time.Time) (int64, error)
}

type jobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// InfectionProcessor consumes infection-marking jobs and flags the check-ins
// overlapping each infection window.
type InfectionProcessor struct {
	checkins checkinMarker
	queue    jobQueue
	logger   *zap.Logger
}

// NewInfectionProcessor creates an infection-marking processor.
func NewInfectionProcessor(checkins checkinMarker, q jobQueue, logger *zap.Logger) *InfectionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InfectionProcessor{checkins: checkins, queue: q, logger: logger}
}

// Process executes one infection-marking job. Flagging is idempotent, so a
// retried job simply re-flags the same rows.
func (p *InfectionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeInfectionMarking {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.InfectionMarkingPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(payload.PlacesIDs) == 0 {
		return fmt.Errorf("infection %s has no places", payload.InfectionID)
	}

	marked, err := p.checkins.MarkPotentialInfections(ctx, payload.PlacesIDs, payload.StartTimestamp, payload.EndTimestamp)
	if err != nil {
		return fmt.Errorf("mark potential infections: %w", err)
	}

	p.logger.Info("infection marking completed",
		zap.String("infection_id", payload.InfectionID.String()),
		zap.Int("places", len(payload.PlacesIDs)),
		zap.Int64("checkins_flagged", marked))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *InfectionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("infection worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Info("infection worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
