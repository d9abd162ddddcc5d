// ABOUTME: Tests for the concrete conversation flows
// ABOUTME: Drives flows through a real engine with fake backends

package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/fancyhands"
	"github.com/hiredesk/gateway/internal/mapping"
	"github.com/hiredesk/gateway/internal/store"
	"github.com/hiredesk/gateway/internal/upwork"
	"github.com/hiredesk/gateway/internal/vso"
)

// --- fakes ---

type fakeTickets struct {
	nextID  int
	items   map[int]*vso.WorkItem
	created []vso.CreateTicketRequest
	closed  []int

	createErr error
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{nextID: 100, items: map[int]*vso.WorkItem{}}
}

func (f *fakeTickets) CreateTicket(_ context.Context, req vso.CreateTicketRequest) (*vso.WorkItem, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.created = append(f.created, req)
	fields := map[string]interface{}{
		vso.FieldTitle:       req.Title,
		vso.FieldDescription: req.Description,
		vso.FieldState:       vso.StateOpen,
		vso.FieldTargetDate:  req.TargetDate.Format("2006-01-02"),
	}
	for k, v := range req.Fields {
		fields[k] = v
	}
	item := &vso.WorkItem{ID: f.nextID, Fields: fields}
	f.items[f.nextID] = item
	return item, nil
}

func (f *fakeTickets) GetTicket(_ context.Context, id int) (*vso.WorkItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: 404", id)
	}
	return item, nil
}

func (f *fakeTickets) UpdateFields(_ context.Context, id int, fields map[string]string) (*vso.WorkItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: 404", id)
	}
	for k, v := range fields {
		item.Fields[k] = v
	}
	return item, nil
}

func (f *fakeTickets) CloseTicket(_ context.Context, id int) (*vso.WorkItem, error) {
	f.closed = append(f.closed, id)
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: 404", id)
	}
	item.Fields[vso.FieldState] = vso.StateClosed
	return item, nil
}

type fakeMappings struct {
	rows    map[string]mapping.State
	saveErr error
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{rows: map[string]mapping.State{}}
}

func (f *fakeMappings) Save(_ context.Context, st *mapping.State) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rows[st.VsoID] = *st
	return nil
}

func (f *fakeMappings) Get(_ context.Context, vsoID string) (*mapping.State, error) {
	st, ok := f.rows[vsoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (f *fakeMappings) Delete(_ context.Context, vsoID string) error {
	if _, ok := f.rows[vsoID]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, vsoID)
	return nil
}

type fakeConversations struct {
	created []string
	sent    []*activity.Activity
}

func (f *fakeConversations) CreateConversation(_ context.Context, _ string, _ []activity.ChannelAccount, topic string) (string, error) {
	id := fmt.Sprintf("agent-conv-%d", len(f.created)+1)
	f.created = append(f.created, topic)
	return id, nil
}

func (f *fakeConversations) SendToConversation(_ context.Context, act *activity.Activity) (string, error) {
	f.sent = append(f.sent, act)
	return "receipt", nil
}

type fakeMailer struct{ sent []string }

func (f *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

type fakeJobBoard struct {
	jobs        []upwork.JobRequest
	freelancers []upwork.Freelancer
}

func (f *fakeJobBoard) SearchFreelancers(_ context.Context, _ string) ([]upwork.Freelancer, error) {
	if len(f.freelancers) == 0 {
		return nil, upwork.ErrNoResults
	}
	return f.freelancers, nil
}

func (f *fakeJobBoard) PostJob(_ context.Context, jr upwork.JobRequest) (*upwork.Job, error) {
	f.jobs = append(f.jobs, jr)
	return &upwork.Job{ID: fmt.Sprintf("job-%d", len(f.jobs))}, nil
}

type fakeTaskService struct{ tasks []string }

func (f *fakeTaskService) CreateTask(_ context.Context, title, _ string, _ int) (*fancyhands.Task, error) {
	f.tasks = append(f.tasks, title)
	return &fancyhands.Task{Key: fmt.Sprintf("task-%d", len(f.tasks)), Status: fancyhands.StatusOpen}, nil
}

type fakeUsers struct{ registered []store.User }

func (f *fakeUsers) AddOrGetUser(_ context.Context, channel, channelUserID, name, phone, alias string) (*store.User, error) {
	u := store.User{ID: "u-1", Name: name, MobilePhone: phone, Alias: alias}
	f.registered = append(f.registered, u)
	return &u, nil
}

// --- harness ---

type harness struct {
	engine  *dialog.Engine
	deps    *Deps
	tickets *fakeTickets
	maps    *fakeMappings
	convs   *fakeConversations
	mailer  *fakeMailer
	jobs    *fakeJobBoard
	tasks   *fakeTaskService
	users   *fakeUsers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tickets: newFakeTickets(),
		maps:    newFakeMappings(),
		convs:   &fakeConversations{},
		mailer:  &fakeMailer{},
		jobs:    &fakeJobBoard{},
		tasks:   &fakeTaskService{},
		users:   &fakeUsers{},
	}
	h.deps = &Deps{
		Tickets:              h.tickets,
		Mappings:             h.maps,
		Conversations:        h.convs,
		Users:                h.users,
		Mailer:               h.mailer,
		Upwork:               h.jobs,
		FancyHands:           h.tasks,
		AssignTo:             "agent@contoso.com",
		AgentServiceURL:      "https://smba.example.com",
		BotAccount:           activity.ChannelAccount{ID: "bot-1", Name: "HireDesk"},
		AgentAccount:         activity.ChannelAccount{ID: "agent-1", Name: "Agent"},
		MinDescriptionLength: 15,
		PromptAttempts:       3,
		Now:                  func() time.Time { return time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC) },
	}
	h.engine = dialog.NewEngine(store.NewMockStore(), func(err error) bool { return errors.Is(err, store.ErrNotFound) })
	require.NoError(t, h.engine.Register(
		NewResearch(h.deps),
		NewPPT(h.deps),
		NewAppointment(h.deps),
		NewAgentHandover(h.deps),
		NewSMSRequest(h.deps),
		NewRegistration(h.deps),
		NewCloseProject(h.deps),
		NewGetProject(h.deps),
	))
	return h
}

func userRef() activity.ConversationReference {
	return activity.ConversationReference{
		User:         activity.ChannelAccount{ID: "teams-user-1", Name: "Dana Park"},
		Bot:          activity.ChannelAccount{ID: "bot-1"},
		Conversation: activity.ConversationAccount{ID: "user-conv-1"},
		ChannelID:    activity.ChannelTeams,
		ServiceURL:   "https://smba.example.com",
	}
}

func seed() func(dialog.Payload) {
	return SeedRequest("u-1", "Dana Park", "+14255550101", "dana@contoso.com", userRef())
}

func (h *harness) begin(t *testing.T, flowID string, s func(dialog.Payload)) *dialog.Result {
	t.Helper()
	res, err := h.engine.Begin(context.Background(), "conv-1", flowID, s)
	require.NoError(t, err)
	return res
}

func (h *harness) say(t *testing.T, text string) *dialog.Result {
	t.Helper()
	res, err := h.engine.Continue(context.Background(), "conv-1", text)
	require.NoError(t, err)
	return res
}

// --- tests ---

func TestResearchFlow_HappyPath(t *testing.T) {
	h := newHarness(t)

	res := h.begin(t, FlowResearch, seed())
	assert.Contains(t, res.Messages[0], "What would you like researched")

	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "2026-10-15")
	res = h.say(t, "yes")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.NotEmpty(t, res.Messages)
	assert.Contains(t, res.Messages[0], "101")

	// Ticket carries the requester fields and the deadline
	require.Len(t, h.tickets.created, 1)
	req := h.tickets.created[0]
	assert.Equal(t, "agent@contoso.com", req.AssignedTo)
	assert.Equal(t, "2026-10-15", req.TargetDate.Format("2006-01-02"))
	assert.Equal(t, "Dana Park", req.Fields[vso.FieldEndUserName])
	assert.Equal(t, "+14255550101", req.Fields[vso.FieldRequestedByPhone])

	// Mapping holds the end-user side only: not yet handed over
	st, err := h.maps.Get(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "user-conv-1", st.EndUserConversationRef.Conversation.ID)
	assert.False(t, st.IsConversationHandedOverToAgent())

	// Receipt mailed, job posted
	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, h.mailer.sent[0], "dana@contoso.com")
	require.Len(t, h.jobs.jobs, 1)
	assert.Equal(t, "Upwork", h.tickets.items[101].StringField(vso.FieldFreelancerPlatform))
}

func TestResearchFlow_Declined(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowResearch, seed())
	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "next friday")
	res := h.say(t, "no")

	assert.Equal(t, dialog.StatusCompleted, res.Status)
	assert.Contains(t, res.Messages[0], "nothing was created")
	assert.Empty(t, h.tickets.created)
	assert.Empty(t, h.jobs.jobs)
}

func TestResearchFlow_ShortDescriptionRetries(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowResearch, seed())
	res := h.say(t, "too short")
	assert.Equal(t, dialog.StatusActive, res.Status)
	assert.Contains(t, res.Messages[0], "more detail")

	// A description of exactly min+1 characters passes
	boundary := strings.Repeat("a", h.deps.MinDescriptionLength+1)
	res = h.say(t, boundary)
	assert.Contains(t, res.Messages[0], "When do you need")
}

func TestResearchFlow_DescriptionExhaustionEndsFlow(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowResearch, seed())
	h.say(t, "no")
	h.say(t, "nope")
	res := h.say(t, "still no")

	// The third consecutive invalid description ends the flow; no deadline
	// prompt follows the stop message.
	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "I will stop here")

	active, err := h.engine.Active(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, h.tickets.created)
}

func TestSMSFlow_DescriptionExhaustionEndsFlow(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowSMSRequest, seed())
	h.say(t, "no")
	h.say(t, "nope")
	res := h.say(t, "still no")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "start over")
	assert.Empty(t, h.tickets.created)
}

func TestResearchFlow_DeadlinePicksLatestCandidate(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowResearch, seed())
	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "either 2026-09-20 or 2026-10-05, whichever works")
	res := h.say(t, "yes")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, h.tickets.created, 1)
	assert.Equal(t, "2026-10-05", h.tickets.created[0].TargetDate.Format("2006-01-02"))
}

func TestResearchFlow_MappingFailureClosesTicket(t *testing.T) {
	h := newHarness(t)
	h.maps.saveErr = errors.New("table offline")

	h.begin(t, FlowResearch, seed())
	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "2026-10-15")

	_, err := h.engine.Continue(context.Background(), "conv-1", "yes")
	require.Error(t, err)
	assert.Equal(t, []int{101}, h.tickets.closed)
}

func TestPPTFlow_TemplateDetailLandsInDescription(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowPPT, seed())
	h.say(t, "A 20-slide investor deck about our robotics platform")
	h.say(t, "use the corporate blue template")
	h.say(t, "2026-09-30")
	res := h.say(t, "yes")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, h.tickets.created, 1)
	assert.Contains(t, h.tickets.created[0].Description, "corporate blue template")
}

func TestAppointmentFlow_PostsMarketplaceTask(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowAppointment, seed())
	h.say(t, "Dentist cleaning at Smile Dental on Pine St")
	h.say(t, "+1 425 555 0101")
	h.say(t, "in 2 weeks")
	res := h.say(t, "yes")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, h.tasks.tasks, 1)
	assert.Equal(t, "FancyHands", h.tickets.items[101].StringField(vso.FieldFreelancerPlatform))
	assert.Equal(t, "task-1", h.tickets.items[101].StringField(vso.FieldFreelancerPlatformJobID))
}

func TestAgentHandover_CompletesMapping(t *testing.T) {
	h := newHarness(t)
	online := false
	h.deps.AgentOnline = func(context.Context) (bool, error) { return online, nil }

	h.begin(t, FlowAgent, seed())
	res := h.say(t, "I need help scoping a research project")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, h.convs.created, 1)

	st, err := h.maps.Get(context.Background(), "101")
	require.NoError(t, err)
	assert.True(t, st.IsConversationHandedOverToAgent())
	assert.Equal(t, "agent-conv-1", st.AgentConversationID)

	// Intro posted on the agent side
	require.Len(t, h.convs.sent, 1)
	assert.Equal(t, "agent-conv-1", h.convs.sent[0].Conversation.ID)
	assert.Contains(t, h.convs.sent[0].Text, "Dana Park")

	// Agent offline adds the slow-response notice
	require.Len(t, res.Messages, 2)
	assert.Contains(t, res.Messages[1], "slow")
}

func TestAgentHandover_OnlineAgentSkipsNotice(t *testing.T) {
	h := newHarness(t)
	h.deps.AgentOnline = func(context.Context) (bool, error) { return true, nil }

	h.begin(t, FlowAgent, seed())
	res := h.say(t, "I need help scoping a research project")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "connected")
}

func TestCloseProject_ClosesAndDropsMapping(t *testing.T) {
	h := newHarness(t)

	// Create a project first
	h.begin(t, FlowResearch, seed())
	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "2026-10-15")
	h.say(t, "yes")

	res := h.begin(t, FlowCloseProject, SeedProject(101))
	require.Equal(t, dialog.StatusCompleted, res.Status)
	assert.Contains(t, res.Messages[0], "closed")
	assert.Equal(t, vso.StateClosed, h.tickets.items[101].StringField(vso.FieldState))

	_, err := h.maps.Get(context.Background(), "101")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Closing again reports the state instead of failing
	res = h.begin(t, FlowCloseProject, SeedProject(101))
	assert.Contains(t, res.Messages[0], "already closed")
}

func TestGetProject_Summarizes(t *testing.T) {
	h := newHarness(t)

	h.begin(t, FlowResearch, seed())
	h.say(t, "Competitive landscape for smart thermostats in Europe")
	h.say(t, "2026-10-15")
	h.say(t, "yes")

	res := h.begin(t, FlowGetProject, SeedProject(101))
	require.Equal(t, dialog.StatusCompleted, res.Status)
	assert.Contains(t, res.Messages[0], "Project 101")
	assert.Contains(t, res.Messages[0], vso.StateOpen)
	assert.Contains(t, res.Messages[0], "2026-10-15")
}

func TestGetProject_UnknownID(t *testing.T) {
	h := newHarness(t)

	res := h.begin(t, FlowGetProject, SeedProject(999))
	require.Equal(t, dialog.StatusCompleted, res.Status)
	assert.Contains(t, res.Messages[0], "could not find")
	assert.Contains(t, res.Messages[0], "999")
}

func TestRegistration_RegistersUser(t *testing.T) {
	h := newHarness(t)

	res := h.begin(t, FlowRegistration, SeedRegistration(activity.ChannelSMS, "+14255550199", "+14255550199"))
	assert.Contains(t, res.Messages[0], "What is your name")

	h.say(t, "Sam Rivera")
	res = h.say(t, "sam@contoso.com")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	assert.Contains(t, res.Messages[0], "all set, Sam Rivera")

	require.Len(t, h.users.registered, 1)
	assert.Equal(t, "Sam Rivera", h.users.registered[0].Name)
	assert.Equal(t, "sam@contoso.com", h.users.registered[0].Alias)
	assert.Equal(t, "+14255550199", h.users.registered[0].MobilePhone)
}

func TestSMSRequest_TerseHappyPath(t *testing.T) {
	h := newHarness(t)

	res := h.begin(t, FlowSMSRequest, seed())
	assert.Contains(t, res.Messages[0], "What do you need?")

	h.say(t, "Compare prices for standing desks under $400")
	h.say(t, "10/15")
	res = h.say(t, "yes")

	require.Equal(t, dialog.StatusCompleted, res.Status)
	require.Len(t, h.tickets.created, 1)
	assert.Equal(t, "2026-10-15", h.tickets.created[0].TargetDate.Format("2006-01-02"))
}
