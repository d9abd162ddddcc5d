// ABOUTME: Bot Framework activity schema subset used by the gateway
// ABOUTME: Activities, channel accounts, and conversation references for Teams and SMS

package activity

import (
	"encoding/json"
	"time"
)

// Activity types the gateway handles. Anything else is ignored.
const (
	TypeMessage            = "message"
	TypeConversationUpdate = "conversationUpdate"
	TypeTyping             = "typing"
)

// Channel identifiers as they appear on inbound activities.
const (
	ChannelTeams = "msteams"
	ChannelSMS   = "sms"
)

// Conversation types.
const (
	ConversationPersonal = "personal"
	ConversationGroup    = "groupChat"
	ConversationChannel  = "channel"
)

// ChannelAccount identifies a participant on a channel
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to
type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

// Attachment carries a rendered card or file alongside an activity.
// ContentType "application/vnd.microsoft.card.adaptive" marks adaptive cards;
// Content is the declarative card payload, passed through untouched.
type Attachment struct {
	ContentType string          `json:"contentType"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Name        string          `json:"name,omitempty"`
}

// Activity is the wire representation of one conversational event
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    time.Time           `json:"timestamp,omitempty"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	Text         string              `json:"text,omitempty"`
	TextFormat   string              `json:"textFormat,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
	Value        json.RawMessage     `json:"value,omitempty"`
}

// ConversationReference is the minimal addressing record needed to continue a
// conversation later. It is what the mapping store persists for relaying.
type ConversationReference struct {
	ActivityID   string              `json:"activityId,omitempty"`
	User         ChannelAccount      `json:"user"`
	Bot          ChannelAccount      `json:"bot"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl"`
}

// IsPersonal reports whether the activity arrived in a 1:1 conversation.
// SMS conversations are always personal even though the channel never sets
// the conversationType field.
func (a *Activity) IsPersonal() bool {
	if a.ChannelID == ChannelSMS {
		return true
	}
	return a.Conversation.ConversationType == "" || a.Conversation.ConversationType == ConversationPersonal
}

// CreateReply builds a message activity addressed back to the sender of a,
// carrying the given text.
func (a *Activity) CreateReply(text string) *Activity {
	return &Activity{
		Type:         TypeMessage,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
		Text:         text,
		Timestamp:    time.Now(),
	}
}

// GetConversationReference extracts the addressing record from an inbound activity.
func (a *Activity) GetConversationReference() ConversationReference {
	return ConversationReference{
		ActivityID:   a.ID,
		User:         a.From,
		Bot:          a.Recipient,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
	}
}

// ApplyConversationReference addresses an outbound activity using a stored
// reference, so a message can be pushed into a conversation without an
// inbound activity to reply to.
func (a *Activity) ApplyConversationReference(ref ConversationReference) {
	a.ChannelID = ref.ChannelID
	a.ServiceURL = ref.ServiceURL
	a.Conversation = ref.Conversation
	a.From = ref.Bot
	a.Recipient = ref.User
}

// NewMessage builds an outbound message activity for a stored reference.
func NewMessage(ref ConversationReference, text string) *Activity {
	a := &Activity{
		Type:      TypeMessage,
		Text:      text,
		Timestamp: time.Now(),
	}
	a.ApplyConversationReference(ref)
	return a
}
