// Package bot implements the conversational turn loop: it deduplicates
// inbound activities, resolves sender identity, recognizes commands, drives
// the dialog engine, and falls through to the agent relay. The HTTP webhook
// that feeds it lives here too.
package bot
