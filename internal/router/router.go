// ABOUTME: Root flow-set selection for inbound activities
// ABOUTME: Channel and conversation type decide which set of flows applies

package router

import (
	"log/slog"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/flows"
	"github.com/hiredesk/gateway/internal/recognizers"
)

// FlowSet names a family of root flows
type FlowSet string

const (
	// FlowSetSMS serves the text-message channel
	FlowSetSMS FlowSet = "sms"
	// FlowSetEndUser serves 1:1 Teams conversations with end users
	FlowSetEndUser FlowSet = "enduser"
	// FlowSetAgent serves the internal agent group conversation
	FlowSetAgent FlowSet = "agent"
)

// Select picks the flow set for an inbound activity. Selection failures are
// non-fatal: the end-user set is the fallback, with the failure logged.
func Select(act *activity.Activity, logger *slog.Logger) (set FlowSet) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("flow set selection failed, using end-user set", "panic", r)
			}
			set = FlowSetEndUser
		}
	}()

	switch {
	case act.ChannelID == activity.ChannelSMS:
		return FlowSetSMS
	case act.IsPersonal():
		return FlowSetEndUser
	default:
		return FlowSetAgent
	}
}

// FlowFor maps a recognized command to the flow id to begin within a set.
// ok is false when the command has no flow in the set: agent-side
// conversations only operate on projects, and relaying is not a flow.
func FlowFor(set FlowSet, cmd recognizers.Command) (flowID string, ok bool) {
	switch cmd.Name {
	case recognizers.CommandCloseProject:
		return flows.FlowCloseProject, true
	case recognizers.CommandGetProject:
		return flows.FlowGetProject, true
	}

	if set == FlowSetAgent {
		return "", false
	}

	switch cmd.Name {
	case recognizers.CommandResearch:
		if set == FlowSetSMS {
			return flows.FlowSMSRequest, true
		}
		return flows.FlowResearch, true
	case recognizers.CommandPPT:
		return flows.FlowPPT, true
	case recognizers.CommandAppointment:
		return flows.FlowAppointment, true
	case recognizers.CommandAgent:
		return flows.FlowAgent, true
	}
	return "", false
}
