// ABOUTME: Single-step flows behind the closeproject and getproject commands
// ABOUTME: Seeded with the ticket id parsed from the command argument

package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/store"
	"github.com/hiredesk/gateway/internal/vso"
)

// projectPayload carries the ticket id a project command targets
type projectPayload struct {
	VsoID int `json:"vso_id"`
}

// SeedProject initializes a project command payload with the ticket id
func SeedProject(vsoID int) func(dialog.Payload) {
	return func(p dialog.Payload) {
		pp, ok := p.(*projectPayload)
		if !ok {
			return
		}
		pp.VsoID = vsoID
	}
}

// NewCloseProject builds the closeproject command flow: close the ticket and
// drop its conversation mapping.
func NewCloseProject(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowCloseProject,
		NewPayload: func() dialog.Payload { return &projectPayload{} },
		Steps: []dialog.Step{
			&dialog.ActionStep{
				Name: "close",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					id := p.(*projectPayload).VsoID
					ticket, err := d.Tickets.GetTicket(ctx, id)
					if err != nil {
						emit(fmt.Sprintf("I could not find project %d.", id))
						d.logger().Warn("looking up project to close", "ticket", id, "error", err)
						return dialog.NextDone, nil
					}
					if ticket.StringField(vso.FieldState) == vso.StateClosed {
						emit(fmt.Sprintf("Project %d is already closed.", id))
						return dialog.NextDone, nil
					}

					if _, err := d.Tickets.CloseTicket(ctx, id); err != nil {
						return dialog.NextDone, fmt.Errorf("closing ticket %d: %w", id, err)
					}
					if err := d.Mappings.Delete(ctx, strconv.Itoa(id)); err != nil && !isNotFound(err) {
						d.logger().Warn("dropping mapping for closed project", "ticket", id, "error", err)
					}
					emit(fmt.Sprintf("Project %d is closed. Thanks for using the service!", id))
					return dialog.NextDone, nil
				},
			},
		},
	}
}

// NewGetProject builds the getproject command flow: a status summary
func NewGetProject(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowGetProject,
		NewPayload: func() dialog.Payload { return &projectPayload{} },
		Steps: []dialog.Step{
			&dialog.ActionStep{
				Name: "summarize",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					id := p.(*projectPayload).VsoID
					ticket, err := d.Tickets.GetTicket(ctx, id)
					if err != nil {
						emit(fmt.Sprintf("I could not find project %d.", id))
						d.logger().Warn("looking up project", "ticket", id, "error", err)
						return dialog.NextDone, nil
					}

					var b strings.Builder
					fmt.Fprintf(&b, "**Project %d** — %s\n\n", ticket.ID, ticket.StringField(vso.FieldTitle))
					fmt.Fprintf(&b, "Status: %s\n", ticket.StringField(vso.FieldState))
					if due := ticket.StringField(vso.FieldTargetDate); due != "" {
						fmt.Fprintf(&b, "Due: %s\n", due)
					}
					if platform := ticket.StringField(vso.FieldFreelancerPlatform); platform != "" {
						fmt.Fprintf(&b, "Assigned via: %s\n", platform)
					}
					emit(b.String())
					return dialog.NextDone, nil
				},
			},
		},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
