// ABOUTME: Shared request payload and ticket-creation helper for service flows
// ABOUTME: Ticket creation, mapping persistence, receipt mail, marketplace posting

package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/mapping"
	"github.com/hiredesk/gateway/internal/recognizers"
	"github.com/hiredesk/gateway/internal/upwork"
	"github.com/hiredesk/gateway/internal/vso"
)

// Flow ids, used by the router and the bot to begin flows
const (
	FlowResearch     = "research"
	FlowPPT          = "ppt"
	FlowAppointment  = "appointment"
	FlowAgent        = "agent"
	FlowSMSRequest   = "sms-request"
	FlowRegistration = "registration"
	FlowCloseProject = "closeproject"
	FlowGetProject   = "getproject"
)

const (
	deadlineFormat      = "2006-01-02"
	defaultDeadlineDays = 7
	appointmentBidCents = 500
)

// requestPayload is the working data of every service-request flow. The bot
// seeds the user fields and the conversation reference when it begins the
// flow; the prompt steps fill in the rest.
type requestPayload struct {
	Kind            string                         `json:"kind"`
	UserID          string                         `json:"user_id"`
	UserName        string                         `json:"user_name"`
	UserPhone       string                         `json:"user_phone"`
	UserEmail       string                         `json:"user_email"`
	ConversationRef activity.ConversationReference `json:"conversation_ref"`

	Description    string `json:"description"`
	AdditionalInfo string `json:"additional_info,omitempty"`
	Deadline       string `json:"deadline,omitempty"`
	Confirmed      bool   `json:"confirmed"`
	VsoID          int    `json:"vso_id,omitempty"`
}

// SeedRequest initializes a service-request payload from the inbound turn.
// Pass it as the seed argument when beginning a flow.
func SeedRequest(userID, name, phone, email string, ref activity.ConversationReference) func(dialog.Payload) {
	return func(p dialog.Payload) {
		rp, ok := p.(*requestPayload)
		if !ok {
			return
		}
		rp.UserID = userID
		rp.UserName = name
		rp.UserPhone = phone
		rp.UserEmail = email
		rp.ConversationRef = ref
	}
}

// descriptionValidator rejects descriptions of minLength characters or fewer
func descriptionValidator(minLength int) func(string) (string, error) {
	return func(input string) (string, error) {
		trimmed := strings.TrimSpace(input)
		if !recognizers.IsValidDescription(trimmed, minLength) {
			return "", fmt.Errorf("description must be longer than %d characters", minLength)
		}
		return trimmed, nil
	}
}

// requireDescription ends a request flow whose description prompt was
// exhausted without usable input. The prompt's fallback text has already told
// the user the flow is stopping, so no further message is emitted.
func requireDescription() *dialog.ActionStep {
	return &dialog.ActionStep{
		Name: "require-description",
		Run: func(_ context.Context, p dialog.Payload, _ func(string)) (dialog.Next, error) {
			if p.(*requestPayload).Description == "" {
				return dialog.NextDone, nil
			}
			return dialog.NextContinue, nil
		},
	}
}

// deadlineValidator resolves free-text input to a date, taking the latest
// candidate when the input is ambiguous.
func deadlineValidator(now func() time.Time) func(string) (string, error) {
	return func(input string) (string, error) {
		deadline, ok := recognizers.Deadline(recognizers.RecognizeDates(input, now()))
		if !ok {
			return "", fmt.Errorf("no date recognized in %q", input)
		}
		return deadline.Format(deadlineFormat), nil
	}
}

// yesNoValidator accepts only clear yes/no answers, normalized to "yes"/"no"
func yesNoValidator(input string) (string, error) {
	switch {
	case recognizers.IsYes(input):
		return "yes", nil
	case recognizers.IsNo(input):
		return "no", nil
	}
	return "", fmt.Errorf("not a yes/no answer")
}

// deadlineOrDefault parses the stored deadline, falling back to a week out
// when the prompt was exhausted without a usable date.
func (d *Deps) deadlineOrDefault(p *requestPayload) time.Time {
	if p.Deadline != "" {
		if t, err := time.Parse(deadlineFormat, p.Deadline); err == nil {
			return t
		}
	}
	return d.now().AddDate(0, 0, defaultDeadlineDays)
}

// createTicket opens the work item for a confirmed request, persists its
// conversation mapping, and queues the user-facing confirmation. A mapping
// failure closes the half-created ticket before surfacing the error.
func (d *Deps) createTicket(ctx context.Context, p *requestPayload, emit func(string)) error {
	description := p.Description
	if p.AdditionalInfo != "" {
		description += "\n\nAdditional detail: " + p.AdditionalInfo
	}

	ticket, err := d.Tickets.CreateTicket(ctx, vso.CreateTicketRequest{
		Title:       fmt.Sprintf("%s request from %s", titleCase(p.Kind), p.UserName),
		Description: description,
		AssignedTo:  d.AssignTo,
		TargetDate:  d.deadlineOrDefault(p),
		Fields: map[string]string{
			vso.FieldEndUserID:        p.UserID,
			vso.FieldEndUserName:      p.UserName,
			vso.FieldRequestedBy:      p.UserName,
			vso.FieldRequestedByPhone: p.UserPhone,
		},
	})
	if err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}
	p.VsoID = ticket.ID

	st := &mapping.State{
		VsoID:                  strconv.Itoa(ticket.ID),
		EndUserName:            p.UserName,
		EndUserID:              p.UserID,
		EndUserConversationRef: p.ConversationRef,
	}
	if err := d.Mappings.Save(ctx, st); err != nil {
		// The ticket exists but is unreachable without its mapping; close
		// it rather than leave an orphan behind.
		if _, closeErr := d.Tickets.CloseTicket(ctx, ticket.ID); closeErr != nil {
			d.logger().Error("closing orphaned ticket", "ticket", ticket.ID, "error", closeErr)
		}
		return fmt.Errorf("saving mapping for ticket %d: %w", ticket.ID, err)
	}

	emit(fmt.Sprintf("Your %s project is created. Project id: **%d**. Send `getproject %d` any time to check on it, or `closeproject %d` when you are done.",
		p.Kind, ticket.ID, ticket.ID, ticket.ID))

	d.sendReceipt(ctx, p)
	return nil
}

// sendReceipt mails a confirmation when a mailer is configured and the user
// has an email address. Failures are logged, never surfaced: the ticket is
// already created.
func (d *Deps) sendReceipt(ctx context.Context, p *requestPayload) {
	if d.Mailer == nil || p.UserEmail == "" {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nYour %s request has been logged as project %d.\nDeadline: %s\n\n%s\n",
		p.UserName, p.Kind, p.VsoID, d.deadlineOrDefault(p).Format(deadlineFormat), p.Description)
	if err := d.Mailer.Send(ctx, p.UserEmail, fmt.Sprintf("Project %d created", p.VsoID), body); err != nil {
		d.logger().Warn("sending receipt mail", "ticket", p.VsoID, "error", err)
	}
}

// postToJobBoard publishes a confirmed request as a marketplace job and
// records the platform fields on the ticket. Posting is best-effort: the
// ticket is already created, so failures are logged and the flow continues.
func (d *Deps) postToJobBoard(ctx context.Context, p *requestPayload) {
	if d.Upwork == nil {
		return
	}

	job, err := d.Upwork.PostJob(ctx, upwork.JobRequest{
		Title:       fmt.Sprintf("%s task (project %d)", titleCase(p.Kind), p.VsoID),
		Description: p.Description,
	})
	if err != nil {
		d.logger().Warn("posting job to marketplace", "ticket", p.VsoID, "error", err)
		return
	}

	fields := map[string]string{
		vso.FieldFreelancerPlatform:      "Upwork",
		vso.FieldFreelancerPlatformJobID: job.ID,
	}
	if freelancers, err := d.Upwork.SearchFreelancers(ctx, p.Description); err != nil {
		if !errors.Is(err, upwork.ErrNoResults) {
			d.logger().Warn("searching freelancers", "ticket", p.VsoID, "error", err)
		}
	} else if len(freelancers) > 0 {
		fields[vso.FieldFreelancerName] = freelancers[0].Name
	}

	if _, err := d.Tickets.UpdateFields(ctx, p.VsoID, fields); err != nil {
		d.logger().Warn("recording marketplace fields", "ticket", p.VsoID, "error", err)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
