// Package relay carries messages between an end user's conversation and the
// agent conversation opened for their ticket, once the handover mapping has
// both sides.
package relay
