package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/pkg/queue"
)

// Logs is the email log persistence used by the processor.
type Logs interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	MarkSent(ctx context.Context, id uuid.UUID, subject string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Renderer renders an email template set.
type Renderer interface {
	Render(name string, data any) (subject, htmlBody, textBody string, err error)
}

// JobQueue is the subset of queue.Queue the worker loop needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job, key string) (bool, error)
}

const pollTimeout = 5 * time.Second

// EmailProcessor delivers queued emails: load the log, render the template data, send, record the outcome.
type EmailProcessor struct {
	logs     Logs
	mailer   Mailer
	renderer Renderer
	queue    JobQueue
	clock    clock.Clock
	backoff  time.Duration
	logger   *zap.Logger
}

// NewEmailProcessor creates an email delivery processor.
func NewEmailProcessor(logs Logs, m Mailer, r Renderer, q JobQueue, clk clock.Clock, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &EmailProcessor{
		logs: logs, mailer: m, renderer: r, queue: q, clock: clk,
		backoff: queue.RetryBackoff, logger: logger,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	l, err := p.logs.GetByID(ctx, payload.EmailLogID)
	if err != nil {
		return fmt.Errorf("email log %s: %w", payload.EmailLogID, err)
	}
	if l.Status == models.EmailLogStatusSent {
		p.logger.Info("email already sent", zap.String("email_log_id", l.ID.String()))
		return nil
	}

	if err := p.deliver(ctx, l); err != nil {
		if mErr := p.logs.MarkFailed(ctx, l.ID, err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.Error(mErr), zap.String("email_log_id", l.ID.String()))
		}
		return err
	}
	return nil
}

func (p *EmailProcessor) deliver(ctx context.Context, l *models.EmailLog) error {
	data := map[string]any{}
	if len(l.Payload) > 0 {
		if err := json.Unmarshal(l.Payload, &data); err != nil {
			return fmt.Errorf("template data: %w", err)
		}
	}
	subject, html, text, err := p.renderer.Render(l.EmailType, data)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := p.mailer.Send(ctx, l.RecipientEmail, subject, html, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, l.ID, subject, p.clock.Now()); err != nil {
		// The message is out; a retry would send it twice.
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", l.ID.String()))
	}
	p.logger.Info("email sent",
		zap.String("email_log_id", l.ID.String()), zap.String("email_type", l.EmailType))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, key, err := p.queue.Dequeue(ctx, pollTimeout, queue.QueueEmails)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if _, reErr := p.queue.Retry(ctx, job, key); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
