// Package dedupe drops duplicate inbound activities within a configurable
// time window, so redelivered webhooks do not advance a dialog twice.
package dedupe
