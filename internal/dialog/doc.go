// ABOUTME: Package documentation for dialog
// ABOUTME: One engine interprets declarative flow definitions with persisted position

// Package dialog runs the bot's conversation flows. A flow is data: a typed
// payload plus an ordered list of prompt and action steps. A single engine
// interprets every flow, persisting the (flow id, step index, payload)
// position through the state store after each turn so conversations survive
// restarts.
//
// Prompt steps validate input with a bounded retry counter. Exhausting the
// counter assigns the step's fallback value and lets the flow resume past
// the prompt; it does not abort the whole dialog.
package dialog
