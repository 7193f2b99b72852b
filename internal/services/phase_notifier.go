package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"agency_tracker/internal/repository"
	"agency_tracker/pkg/mailer"
)

type PhaseCompletedEvent struct {
	ProjectID    uint
	ProjectTitle string
	PhaseID      uint
	PhaseName    string
	TrackingCode string
}

// PhaseNotifyResult is reported back to the admin UI; a failed send is data,
// not an error.
type PhaseNotifyResult struct {
	Success bool   `json:"success"`
	Sent    int    `json:"sent"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PhaseNotifier interface {
	NotifyPhaseCompleted(ctx context.Context, event PhaseCompletedEvent) PhaseNotifyResult
}

// MailSender is satisfied by *mailer.Client.
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type emailPhaseNotifier struct {
	codeRepo    repository.TrackingCodeRepository
	preferences PreferenceService
	mail        MailSender
	baseURL     string
}

func NewEmailPhaseNotifier(codeRepo repository.TrackingCodeRepository, preferences PreferenceService, mail MailSender, baseURL string) PhaseNotifier {
	return &emailPhaseNotifier{
		codeRepo:    codeRepo,
		preferences: preferences,
		mail:        mail,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

func (n *emailPhaseNotifier) NotifyPhaseCompleted(ctx context.Context, event PhaseCompletedEvent) PhaseNotifyResult {
	tc, err := n.codeRepo.GetActiveByCode(ctx, event.TrackingCode)
	if err != nil {
		return PhaseNotifyResult{Error: fmt.Sprintf("tracking code lookup failed: %v", err)}
	}
	recipients, err := n.preferences.OptedInEmails(ctx, tc.ID)
	if err != nil {
		return PhaseNotifyResult{Error: fmt.Sprintf("recipient lookup failed: %v", err)}
	}
	if len(recipients) == 0 {
		return PhaseNotifyResult{Success: true}
	}

	msg := n.render(event)
	sent := 0
	var failures []string
	for _, to := range recipients {
		msg.To = to
		if err := n.mail.Send(ctx, msg); err != nil {
			log.Printf("Warning: phase %d completion email to %s failed: %v", event.PhaseID, to, err)
			failures = append(failures, to)
			continue
		}
		sent++
	}

	result := PhaseNotifyResult{Success: len(failures) == 0, Sent: sent}
	if len(failures) > 0 {
		result.Error = fmt.Sprintf("%d of %d emails failed", len(failures), len(recipients))
	}
	return result
}

func (n *emailPhaseNotifier) render(event PhaseCompletedEvent) mailer.Message {
	link := fmt.Sprintf("%s/track/%s", n.baseURL, event.TrackingCode)
	title := event.ProjectTitle
	if title == "" {
		title = "your project"
	}
	return mailer.Message{
		Subject: fmt.Sprintf("Milestone reached: %s", event.PhaseName),
		HTML: fmt.Sprintf(
			`<p>The phase <strong>%s</strong> of %s has been completed.</p>`+
				`<p><a href="%s">View project progress</a></p>`,
			html.EscapeString(event.PhaseName), html.EscapeString(title), link,
		),
	}
}
