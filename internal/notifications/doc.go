// Package notifications delivers run lifecycle events via ntfy.
//
// The service publishes to the topic configured in config.toml and degrades
// to a no-op when notifications are disabled, so the pipeline never has to
// check whether a notifier exists before emitting an event.
package notifications
