// Package router selects which family of conversation flows handles an
// inbound activity: SMS, end-user, or agent. It is a pure function of
// activity metadata with a logged end-user fallback on failure.
package router
