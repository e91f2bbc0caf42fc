// Package target implements the PipeTarget adapters (spec §4.1): each target
// service type gets its own Send, fed a batch of already-transformed events.
package target

import "context"

// Event is one event ready to hand to a target, already passed through the
// InputTransformer (so Payload may be a string or a decoded JSON value).
type Event struct {
	Payload interface{}
}

// PipeTarget sends a batch of events to the pipe's configured target. Send
// returns an error only for failures the worker should back off and retry;
// per-event delivery failures a target chooses to tolerate (e.g. an HTTP
// destination logging a non-2xx and moving on) are not reported as errors.
type PipeTarget interface {
	Send(ctx context.Context, events []Event) error
}
