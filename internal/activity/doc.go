// Package activity defines the subset of the Bot Framework activity schema
// the gateway consumes and produces.
//
// Activities arrive as JSON on the connector webhook and are sent back out
// through the connector REST API verbatim; this package does not redefine the
// protocol, it only types the fields the gateway reads.
//
// The one structure with gateway-specific meaning is ConversationReference:
// the minimal addressing record persisted in ticket mappings so that messages
// can later be pushed into either side of a handed-over conversation.
package activity
