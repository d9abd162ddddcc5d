// ABOUTME: Package documentation for recognizers
// ABOUTME: Lightweight text recognition shared by the router and the dialog flows

// Package recognizers extracts structure from free-text user input: bot
// commands, yes/no confirmations, email addresses, description length
// validation, and deadline dates.
//
// The recognizers are deliberately pattern-based. The bot drives a fixed set
// of linear flows, so a small set of regular expressions and word lists
// covers the inputs it actually has to understand.
package recognizers
