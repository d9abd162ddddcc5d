// ABOUTME: Package documentation for flows
// ABOUTME: Concrete flow definitions the dialog engine interprets

// Package flows defines the gateway's conversation flows: the service
// requests (research, presentation, appointment), the agent handover, the
// SMS variant, first-contact registration, and the project commands.
//
// Flows are built against the small interfaces in Deps, so tests drive them
// with fakes. Every service flow ends in the same tail: confirmation check,
// ticket creation, conversation mapping, then best-effort extras (receipt
// mail, marketplace posting) that log failures instead of surfacing them.
package flows
