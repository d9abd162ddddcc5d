// ABOUTME: Dependencies shared by all flow definitions
// ABOUTME: Small consumer-side interfaces so tests can use fakes

package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/fancyhands"
	"github.com/hiredesk/gateway/internal/mapping"
	"github.com/hiredesk/gateway/internal/store"
	"github.com/hiredesk/gateway/internal/upwork"
	"github.com/hiredesk/gateway/internal/vso"
)

// Tickets is what the flows need from the work item tracker
type Tickets interface {
	CreateTicket(ctx context.Context, req vso.CreateTicketRequest) (*vso.WorkItem, error)
	GetTicket(ctx context.Context, id int) (*vso.WorkItem, error)
	UpdateFields(ctx context.Context, id int, fields map[string]string) (*vso.WorkItem, error)
	CloseTicket(ctx context.Context, id int) (*vso.WorkItem, error)
}

// Mappings persists the conversation mapping for a ticket
type Mappings interface {
	Save(ctx context.Context, st *mapping.State) error
	Get(ctx context.Context, vsoID string) (*mapping.State, error)
	Delete(ctx context.Context, vsoID string) error
}

// Conversations is what the handover flow needs from the connector
type Conversations interface {
	CreateConversation(ctx context.Context, serviceURL string, members []activity.ChannelAccount, topic string) (string, error)
	SendToConversation(ctx context.Context, act *activity.Activity) (string, error)
}

// Mailer sends ticket receipts. Optional.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// JobBoard posts research and design work to a freelance marketplace. Optional.
type JobBoard interface {
	SearchFreelancers(ctx context.Context, q string) ([]upwork.Freelancer, error)
	PostJob(ctx context.Context, jr upwork.JobRequest) (*upwork.Job, error)
}

// TaskService posts small tasks (appointments) to a task marketplace. Optional.
type TaskService interface {
	CreateTask(ctx context.Context, title, description string, bid int) (*fancyhands.Task, error)
}

// Users registers new users during the registration flow
type Users interface {
	AddOrGetUser(ctx context.Context, channel, channelUserID, name, phone, alias string) (*store.User, error)
}

// Deps wires the flows to the rest of the gateway. Tickets, Mappings, and
// Conversations are required; the marketplace and mail adapters are optional
// and skipped when nil.
type Deps struct {
	Tickets       Tickets
	Mappings      Mappings
	Conversations Conversations
	Users         Users
	Mailer        Mailer
	Upwork        JobBoard
	FancyHands    TaskService

	// AgentOnline reports whether an agent was recently active. Optional;
	// when set and returning false, handover adds a "may be slow to
	// respond" notice.
	AgentOnline func(ctx context.Context) (bool, error)

	// AssignTo is the agent account new tickets are assigned to
	AssignTo string
	// AgentServiceURL addresses the channel the agent conversations live on
	AgentServiceURL string
	BotAccount      activity.ChannelAccount
	AgentAccount    activity.ChannelAccount

	MinDescriptionLength int
	PromptAttempts       int

	Now    func() time.Time
	Logger *slog.Logger
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default().With("component", "flows")
}
