package target

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// Factory builds the right PipeTarget for a pipe's Target ARN, grounded on
// target_factory.py's service-name dispatch.
type Factory struct {
	Queues       broker.QueueBroker
	Streams      broker.StreamBroker
	HTTPClient   Doer
	Connections  ConnectionResolver
	Destinations DestinationResolver
	Secrets      SecretsClient
	Log          *zap.Logger
}

// Build returns the PipeTarget for targetArn given that target's parameters.
func (f *Factory) Build(targetArn string, params *pipes.TargetParameters) (PipeTarget, error) {
	service := arnService(targetArn)
	switch service {
	case "sqs":
		var sqsParams *pipes.SqsTargetParameters
		if params != nil {
			sqsParams = params.SqsQueueParameters
		}
		return NewQueueTarget(f.Queues, targetArn, sqsParams), nil
	case "kinesis":
		var kinesisParams *pipes.KinesisTargetParameters
		if params != nil {
			kinesisParams = params.KinesisStreamParameters
		}
		return NewStreamTarget(f.Streams, targetArn, kinesisParams), nil
	case "events":
		var httpParams *pipes.HttpParameters
		if params != nil {
			httpParams = params.HttpParameters
		}
		doer := f.HTTPClient
		if doer == nil {
			doer = http.DefaultClient
		}
		return NewHttpTarget(doer, f.Connections, f.Destinations, f.Secrets, targetArn, httpParams, f.Log), nil
	default:
		return nil, pipes.NewValidationError("unsupported target service %q in arn %s", service, targetArn)
	}
}

// arnService extracts the service segment from "arn:aws:<service>:...".
func arnService(arn string) string {
	parts := strings.SplitN(arn, ":", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
