// ABOUTME: Package documentation for connector
// ABOUTME: Describes outbound delivery, token lifecycle, and inbound auth

// Package connector talks to the bot channel service on both directions of
// the webhook.
//
// Outbound, HTTPClient posts activities to the conversation endpoints with a
// cached client-credentials token (TokenSource) and retries transient
// failures with exponential backoff. Messages bound for the SMS channel are
// down-converted from markdown to plain text before delivery.
//
// Inbound, TokenValidator verifies the bearer token the channel attaches to
// webhook calls against the published signing keys.
package connector
