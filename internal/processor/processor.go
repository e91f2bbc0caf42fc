// Package processor implements the EventProcessor (spec §4.4): decode the
// raw polled event, apply the optional InputTransformer, then send to the
// target, classifying failures as customer-caused (non-retryable) or
// internal (retryable).
package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/internal/target"
	"github.com/arc-self/apps/pipes-service/internal/transform"
)

const maxDecodeRounds = 3

// Transformer is the subset of transform.InputTransformer the processor
// needs, so a pipe with no InputTemplate can leave this nil.
type Transformer interface {
	Transform(event interface{}) interface{}
}

// EventProcessor turns raw polled bytes into target-ready events: decode,
// transform, send. One instance per pipe, reused across every poll batch.
type EventProcessor struct {
	target      target.PipeTarget
	transformer Transformer
	targetArn   string
	log         *zap.Logger
}

func New(t target.PipeTarget, transformer Transformer, targetArn string, log *zap.Logger) *EventProcessor {
	return &EventProcessor{target: t, transformer: transformer, targetArn: targetArn, log: log}
}

// Process decodes and (optionally) transforms every event in the batch, then
// hands the batch to the target in one Send call. A CustomerInvocationError
// from the target is returned unchanged (non-retryable); any other error is
// wrapped as PipeInternalError so the worker backs off.
func (p *EventProcessor) Process(ctx context.Context, rawEvents [][]byte) error {
	events := make([]target.Event, len(rawEvents))
	for i, raw := range rawEvents {
		decoded := decodeEvent(raw)
		var payload interface{} = decoded
		if p.transformer != nil {
			payload = p.transformer.Transform(decoded)
		}
		events[i] = target.Event{Payload: payload}
	}

	if err := p.target.Send(ctx, events); err != nil {
		var custErr *pipes.CustomerInvocationError
		if errors.As(err, &custErr) {
			return err
		}
		p.log.Warn("pipe target invocation failed", zap.Error(err))
		if _, ok := err.(*pipes.PipeInternalError); ok {
			return err
		}
		return pipes.NewPipeInternalError(err)
	}
	return nil
}

// decodeEvent parses the raw polled bytes as JSON, then — if the result
// carries a top-level "data" field — iteratively base64-decodes that field
// up to maxDecodeRounds times, matching _decode_data_field's handling of
// double-encoded Kinesis/DynamoDB stream records.
func decodeEvent(raw []byte) map[string]interface{} {
	var event map[string]interface{}
	if err := json.Unmarshal(raw, &event); err != nil {
		// Not a JSON object at all (a queue message body, typically): wrap it
		// so the rest of the pipeline has a consistent shape to address via
		// jsonpath ($.body), matching how SQS records surface their payload.
		return map[string]interface{}{"body": string(raw)}
	}

	rawData, ok := event["data"]
	if !ok {
		return event
	}
	dataStr, ok := rawData.(string)
	if !ok {
		return event
	}

	decoded := dataStr
	for i := 0; i < maxDecodeRounds; i++ {
		next, err := base64.StdEncoding.DecodeString(decoded)
		if err != nil {
			break
		}
		decoded = string(next)

		var parsed interface{}
		if err := json.Unmarshal([]byte(decoded), &parsed); err == nil {
			event["data"] = parsed
			return event
		}
	}
	event["data"] = decoded
	return event
}

// FailureContext builds the DLQ failure-context record for a batch that was
// ultimately dropped, grounded on generate_event_failure_context.
func (p *EventProcessor) FailureContext(abortCondition string, cause error) map[string]interface{} {
	errMsg := "Unknown"
	if cause != nil {
		errMsg = cause.Error()
	}
	return map[string]interface{}{
		"id":        uuid.NewString(),
		"condition": abortCondition,
		"targetArn": p.targetArn,
		"error":     errMsg,
	}
}

var _ Transformer = (*transform.InputTransformer)(nil)
