// Package mapping tracks which conversations belong to a ticket: the end
// user's conversation reference and, after handover, the agent conversation.
// Mappings are persisted in the local store and mirrored into the ticket's
// custom fields.
package mapping
