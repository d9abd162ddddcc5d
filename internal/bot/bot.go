// ABOUTME: The bot's turn loop: dedupe, identity, commands, dialogs, relay
// ABOUTME: Every inbound activity flows through Process exactly once

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/dedupe"
	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/flows"
	"github.com/hiredesk/gateway/internal/recognizers"
	"github.com/hiredesk/gateway/internal/router"
	"github.com/hiredesk/gateway/internal/store"
)

// Users is what the turn loop needs from the identity service
type Users interface {
	AddOrGetUser(ctx context.Context, channel, channelUserID, name, phone, alias string) (*store.User, error)
	GetUserByColumn(ctx context.Context, column, value string) ([]*store.User, error)
}

// Sender delivers the bot's replies
type Sender interface {
	ReplyToActivity(ctx context.Context, act *activity.Activity) (string, error)
}

// Relayer forwards messages across a handed-over ticket
type Relayer interface {
	Relay(ctx context.Context, act *activity.Activity) (bool, error)
}

// Options carries the turn loop's behavioral knobs
type Options struct {
	// Production suppresses error detail in apology messages
	Production bool
	// OnlineThreshold is how recent agent activity must be to count as online
	OnlineThreshold time.Duration
}

// Bot drives one turn per inbound activity
type Bot struct {
	store  store.Store
	users  Users
	engine *dialog.Engine
	relay  Relayer
	sender Sender
	dedupe *dedupe.Cache
	opts   Options
	logger *slog.Logger
}

// New wires the turn loop
func New(st store.Store, users Users, engine *dialog.Engine, relayer Relayer, sender Sender, cache *dedupe.Cache, opts Options, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = 10 * time.Minute
	}
	return &Bot{
		store:  st,
		users:  users,
		engine: engine,
		relay:  relayer,
		sender: sender,
		dedupe: cache,
		opts:   opts,
		logger: logger.With("component", "bot"),
	}
}

// Process handles one inbound activity. Turn failures never escape: the
// top-level handler logs them and posts an apology, with the error detail
// included outside production.
func (b *Bot) Process(ctx context.Context, act *activity.Activity) {
	if err := b.handle(ctx, act); err != nil {
		b.logger.Error("turn failed",
			"activity", act.ID,
			"conversation", act.Conversation.ID,
			"error", err)

		apology := "Sorry, something went wrong on my end. Please try that again."
		if !b.opts.Production {
			apology += "\n\nDetail: " + err.Error()
		}
		if _, sendErr := b.sender.ReplyToActivity(ctx, act.CreateReply(apology)); sendErr != nil {
			b.logger.Error("sending apology", "error", sendErr)
		}
	}
}

func (b *Bot) handle(ctx context.Context, act *activity.Activity) error {
	if b.dedupe != nil && act.ID != "" && b.dedupe.Seen(dedupe.Key(act)) {
		b.logger.Debug("dropping duplicate activity", "activity", act.ID)
		return nil
	}

	switch act.Type {
	case activity.TypeConversationUpdate:
		return b.handleConversationUpdate(ctx, act)
	case activity.TypeMessage:
		return b.handleMessage(ctx, act)
	default:
		return nil
	}
}

// handleConversationUpdate welcomes newly added members. Unknown SMS users
// go through registration instead of a plain welcome, since the channel
// gives the bot nothing but a phone number to go on.
func (b *Bot) handleConversationUpdate(ctx context.Context, act *activity.Activity) error {
	welcoming := false
	for _, m := range act.MembersAdded {
		if m.ID != act.Recipient.ID {
			welcoming = true
			break
		}
	}
	if !welcoming {
		return nil
	}

	if act.ChannelID == activity.ChannelSMS {
		known, err := b.knownUser(ctx, store.UserColumnSmsUserID, act.From.ID)
		if err != nil {
			return err
		}
		if !known {
			return b.begin(ctx, act, flows.FlowRegistration,
				flows.SeedRegistration(act.ChannelID, act.From.ID, act.From.ID))
		}
	}

	text := "Hi! I am the HireDesk assistant. " + flows.HelpText(act.ChannelID)
	return b.reply(ctx, act, text)
}

func (b *Bot) handleMessage(ctx context.Context, act *activity.Activity) error {
	set := router.Select(act, b.logger)

	if err := b.touchOnlineStatus(ctx, set, act); err != nil {
		// Presence is a heuristic; a write failure must not kill the turn
		b.logger.Warn("updating online status", "error", err)
	}

	var user *store.User
	if set != router.FlowSetAgent {
		u, registered, err := b.ensureUser(ctx, act)
		if err != nil {
			return err
		}
		if registered {
			return nil
		}
		user = u
	}

	if cmd, ok := recognizers.ParseCommand(act.Text); ok {
		if cmd.Name == recognizers.CommandReset {
			return b.reset(ctx, act)
		}
		if flowID, ok := router.FlowFor(set, cmd); ok {
			return b.begin(ctx, act, flowID, b.seedFor(flowID, cmd, user, act))
		}
	}

	res, err := b.engine.Continue(ctx, act.Conversation.ID, act.Text)
	switch {
	case err == nil:
		return b.replyAll(ctx, act, res.Messages)
	case !errors.Is(err, dialog.ErrNoActiveDialog):
		return err
	}

	handled, err := b.relay.Relay(ctx, act)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	return b.reply(ctx, act, "I did not catch that. "+flows.HelpText(act.ChannelID))
}

// reset clears every piece of per-conversation state, then replays a
// synthesized membership update so the user gets the same welcome a brand
// new conversation would.
func (b *Bot) reset(ctx context.Context, act *activity.Activity) error {
	if err := b.store.ClearConversation(ctx, act.Conversation.ID); err != nil {
		return fmt.Errorf("clearing conversation state: %w", err)
	}

	replay := &activity.Activity{
		Type:         activity.TypeConversationUpdate,
		ChannelID:    act.ChannelID,
		ServiceURL:   act.ServiceURL,
		From:         act.From,
		Recipient:    act.Recipient,
		Conversation: act.Conversation,
		MembersAdded: []activity.ChannelAccount{act.From, act.Recipient},
	}
	return b.handle(ctx, replay)
}

// begin starts a flow and delivers its first messages
func (b *Bot) begin(ctx context.Context, act *activity.Activity, flowID string, seed func(dialog.Payload)) error {
	res, err := b.engine.Begin(ctx, act.Conversation.ID, flowID, seed)
	if err != nil {
		return err
	}
	return b.replyAll(ctx, act, res.Messages)
}

// seedFor builds the payload seed for a command-started flow
func (b *Bot) seedFor(flowID string, cmd recognizers.Command, user *store.User, act *activity.Activity) func(dialog.Payload) {
	switch flowID {
	case flows.FlowCloseProject, flows.FlowGetProject:
		id, _ := strconv.Atoi(cmd.Arg)
		return flows.SeedProject(id)
	}

	name, phone, email := act.From.Name, "", ""
	userID := act.From.ID
	if user != nil {
		userID, name, phone, email = user.ID, user.Name, user.MobilePhone, user.Alias
	}
	return flows.SeedRequest(userID, name, phone, email, act.GetConversationReference())
}

// ensureUser resolves the sender to a stored profile. Unknown SMS senders
// are routed into the registration flow (registered=true means the turn is
// finished); Teams supplies a display name, so those profiles are created
// inline.
func (b *Bot) ensureUser(ctx context.Context, act *activity.Activity) (user *store.User, registered bool, err error) {
	if act.ChannelID == activity.ChannelSMS {
		known, err := b.knownUser(ctx, store.UserColumnSmsUserID, act.From.ID)
		if err != nil {
			return nil, false, err
		}
		if !known {
			if _, ok := recognizers.ParseCommand(act.Text); !ok {
				// Mid-registration answers continue the active dialog
				if active, err := b.engine.Active(ctx, act.Conversation.ID); err == nil && active {
					return nil, false, nil
				}
			}
			err := b.begin(ctx, act, flows.FlowRegistration,
				flows.SeedRegistration(act.ChannelID, act.From.ID, act.From.ID))
			return nil, true, err
		}
		users, err := b.users.GetUserByColumn(ctx, store.UserColumnSmsUserID, act.From.ID)
		if err != nil {
			return nil, false, err
		}
		return users[0], false, nil
	}

	u, err := b.users.AddOrGetUser(ctx, act.ChannelID, act.From.ID, act.From.Name, "", "")
	if err != nil {
		return nil, false, fmt.Errorf("resolving user profile: %w", err)
	}
	return u, false, nil
}

func (b *Bot) knownUser(ctx context.Context, column, value string) (bool, error) {
	users, err := b.users.GetUserByColumn(ctx, column, value)
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}
	return len(users) > 0, nil
}

// touchOnlineStatus records when each side was last seen active
func (b *Bot) touchOnlineStatus(ctx context.Context, set router.FlowSet, act *activity.Activity) error {
	memberType := store.MemberTypeEndUser
	if set == router.FlowSetAgent {
		memberType = store.MemberTypeAgent
	}
	return b.store.UpsertOnlineStatus(ctx, &store.OnlineStatus{
		MemberType:         memberType,
		Name:               act.From.Name,
		BotFrameworkUserID: act.From.ID,
		LastActiveOn:       time.Now(),
	})
}

// AgentOnlineCheck builds the availability probe the handover flow uses:
// an agent counts as online when one was active within threshold.
func AgentOnlineCheck(st store.Store, threshold time.Duration) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		status, err := st.GetOnlineStatus(ctx, store.MemberTypeAgent)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return time.Since(status.LastActiveOn) < threshold, nil
	}
}

func (b *Bot) reply(ctx context.Context, act *activity.Activity, text string) error {
	if _, err := b.sender.ReplyToActivity(ctx, act.CreateReply(text)); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

func (b *Bot) replyAll(ctx context.Context, act *activity.Activity, texts []string) error {
	for _, text := range texts {
		if err := b.reply(ctx, act, text); err != nil {
			return err
		}
	}
	return nil
}
