package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/akvora/backend/config"
	"github.com/akvora/backend/internal/metrics"
	"github.com/akvora/backend/pkg/queue"
)

// Sender delivers a single email. The SMTP sender is used when configured;
// otherwise the log sender records what would have been sent.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// SMTPSender sends mail over plain-auth SMTP.
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender creates an SMTP sender from config.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send implements Sender.
func (s *SMTPSender) Send(_ context.Context, to, subject, bodyHTML string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	from := s.cfg.FromAddress
	headers := []string{
		"From: " + s.cfg.FromName + " <" + from + ">",
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + bodyHTML
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
}

// LogSender logs emails instead of delivering them. Used when SMTP is not
// configured so the queue still drains in dev.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("email (smtp not configured, logged only)",
		zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Worker drains the email queue and delivers notification emails.
type Worker struct {
	queue  *queue.Queue
	sender Sender
	logger *zap.Logger
}

// New creates a worker.
func New(q *queue.Queue, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{queue: q, sender: sender, logger: logger}
}

// Run blocks processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.String("queue", queue.QueueEmails))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, _, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	if job.Type != queue.JobTypeEmail {
		w.logger.Warn("unknown job type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		metrics.EmailJobs.WithLabelValues("skipped").Inc()
		return
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.Warn("invalid email payload", zap.String("job_id", job.ID), zap.Error(err))
		metrics.EmailJobs.WithLabelValues("invalid").Inc()
		return
	}

	if err := w.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.BodyHTML); err != nil {
		w.logger.Error("send email failed",
			zap.String("job_id", job.ID),
			zap.String("email_type", payload.EmailType),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		metrics.EmailJobs.WithLabelValues("failed").Inc()
		if err := w.queue.Retry(ctx, job); err != nil {
			w.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}
	metrics.EmailJobs.WithLabelValues("sent").Inc()
	w.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("to", payload.RecipientEmail))
}
