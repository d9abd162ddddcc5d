// Package vso is the work item tracking adapter (Azure DevOps).
//
// Tickets are the authoritative record of every service request the bot
// handles. Beyond the standard title/description/state fields, the gateway
// stores its cross-channel join data as Custom.* fields on the ticket: the
// end user's conversation id, the agent conversation id, and who requested
// the work. See the Field* constants.
//
// Calls are deliberately not wrapped in a retry policy: a failed ticket
// operation surfaces to the dialog layer, which either compensates (closing
// a half-created ticket) or apologizes to the user. Only connector sends are
// retried in this codebase.
package vso
