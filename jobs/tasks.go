package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeApprovalCleanup sweeps stale approval tokens.
	TaskTypeApprovalCleanup = "approval:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSendEmailHandler processes TaskTypeSendEmail tasks through the mailer.
func NewSendEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.To == "" {
			return asynq.SkipRetry
		}
		if err := mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
			logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// TokenSweeper removes stale approval tokens.
type TokenSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// NewApprovalCleanupTask constructs the nightly sweep task.
func NewApprovalCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeApprovalCleanup, nil)
}

// NewApprovalCleanupHandler processes TaskTypeApprovalCleanup tasks.
func NewApprovalCleanupHandler(sweeper TokenSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		deleted, err := sweeper.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info("approval tokens swept", slog.Int64("deleted", deleted))
		return nil
	}
}
