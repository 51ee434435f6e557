package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sekolahku/sekolahku/internal/perms"
)

// EmailNotifier turns domain notifications into queued send-email tasks.
// It backs both the permission-change and approval-code notifications.
type EmailNotifier struct {
	client *Client
	logger *slog.Logger
}

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(client *Client, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{client: client, logger: logger}
}

// PermissionsChanged informs an admin their grant set was replaced.
func (n *EmailNotifier) PermissionsChanged(ctx context.Context, email, name string, permissions []perms.Permission) error {
	keys := make([]string, 0, len(permissions))
	for _, p := range permissions {
		keys = append(keys, p.Key())
	}
	body := fmt.Sprintf("Halo %s,\n\nYour access permissions were updated. You now hold:\n\n%s\n\nIf this was unexpected, contact your school administrator.\n",
		name, bulletList(keys))
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: "Your permissions were updated",
		Body:    body,
	})
	return err
}

// ApprovalCode delivers the verification code for a sensitive change.
func (n *EmailNotifier) ApprovalCode(ctx context.Context, email, name, code string, expiresAt time.Time) error {
	body := fmt.Sprintf("Halo %s,\n\nYour verification code is: %s\n\nIt expires at %s. If you did not request a change, ignore this message.\n",
		name, code, expiresAt.UTC().Format(time.RFC3339))
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: "Verification code for school profile change",
		Body:    body,
	})
	return err
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (no permissions)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
