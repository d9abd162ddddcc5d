// ABOUTME: Tests for flow-set selection and command-to-flow mapping
// ABOUTME: Covers channel and conversation-type routing rules

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/flows"
	"github.com/hiredesk/gateway/internal/recognizers"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		act  activity.Activity
		want FlowSet
	}{
		{
			name: "sms channel",
			act:  activity.Activity{ChannelID: activity.ChannelSMS},
			want: FlowSetSMS,
		},
		{
			name: "teams personal",
			act: activity.Activity{
				ChannelID:    activity.ChannelTeams,
				Conversation: activity.ConversationAccount{ConversationType: activity.ConversationPersonal},
			},
			want: FlowSetEndUser,
		},
		{
			name: "teams missing conversation type counts as personal",
			act:  activity.Activity{ChannelID: activity.ChannelTeams},
			want: FlowSetEndUser,
		},
		{
			name: "teams group goes to agents",
			act: activity.Activity{
				ChannelID:    activity.ChannelTeams,
				Conversation: activity.ConversationAccount{ConversationType: activity.ConversationGroup},
			},
			want: FlowSetAgent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(&tt.act, nil))
		})
	}
}

func TestFlowFor(t *testing.T) {
	cmd := func(name string) recognizers.Command { return recognizers.Command{Name: name} }

	// Research picks the channel-appropriate variant
	id, ok := FlowFor(FlowSetEndUser, cmd(recognizers.CommandResearch))
	require.True(t, ok)
	assert.Equal(t, flows.FlowResearch, id)

	id, ok = FlowFor(FlowSetSMS, cmd(recognizers.CommandResearch))
	require.True(t, ok)
	assert.Equal(t, flows.FlowSMSRequest, id)

	// Project commands work in every set
	id, ok = FlowFor(FlowSetAgent, cmd(recognizers.CommandCloseProject))
	require.True(t, ok)
	assert.Equal(t, flows.FlowCloseProject, id)

	// Agents do not start service requests
	_, ok = FlowFor(FlowSetAgent, cmd(recognizers.CommandResearch))
	assert.False(t, ok)

	// Reset is handled by the turn loop, not a flow
	_, ok = FlowFor(FlowSetEndUser, cmd(recognizers.CommandReset))
	assert.False(t, ok)
}
