package worker

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/internal/poller"
	"github.com/arc-self/apps/pipes-service/internal/processor"
	"github.com/arc-self/apps/pipes-service/internal/target"
	"github.com/arc-self/apps/pipes-service/internal/transform"
)

// Factory builds a fully-wired Worker for a pipe, grounded on
// pipe_worker_factory.py's source-service dispatch plus target_factory.py's
// target-service dispatch.
type Factory struct {
	Queues       broker.QueueBroker
	Streams      broker.StreamBroker
	Targets      *target.Factory
	Reporter     StateReporter
	Log          *zap.Logger
	PollInterval time.Duration
}

// Build constructs the Worker for the given pipe. It does not start it.
func (f *Factory) Build(pipe *pipes.PipeEntity) (*Worker, error) {
	pipeTarget, err := f.Targets.Build(pipe.Target, pipe.TargetParameters)
	if err != nil {
		return nil, err
	}

	var transformer processor.Transformer
	if pipe.TargetParameters != nil && pipe.TargetParameters.InputTemplate != "" {
		transformer = transform.New(
			pipe.TargetParameters.InputTemplate,
			pipe.Arn(),
			pipe.Name,
			pipe.Source,
			pipe.Target,
		)
	}

	proc := processor.New(pipeTarget, transformer, pipe.Target, f.Log)

	p, err := f.buildPoller(pipe)
	if err != nil {
		return nil, err
	}

	w := New(pipe.Name, pipe.AccountID, pipe.Region, pipe.Source, p, proc, f.Reporter, f.Log, f.PollInterval)
	return w, nil
}

func (f *Factory) buildPoller(pipe *pipes.PipeEntity) (poller.Poller, error) {
	service := sourceService(pipe.Source)
	sourceParams := pipe.SourceParameters
	if sourceParams == nil {
		sourceParams = &pipes.SourceParameters{}
	}

	switch service {
	case "sqs":
		return poller.NewQueuePoller(f.Queues, pipe.Source, sourceParams.SqsQueueParameters), nil
	case "kinesis":
		return poller.NewShardPoller(f.Streams, pipe.Source, withStreamDefaults(sourceParams.KinesisStreamParameters)), nil
	case "dynamodb":
		return poller.NewShardPoller(f.Streams, pipe.Source, withStreamDefaults(sourceParams.DynamoDBStreamParameters)), nil
	default:
		return nil, pipes.NewValidationError("unsupported source service %q in arn %s", service, pipe.Source)
	}
}

func withStreamDefaults(p *pipes.StreamParameters) *pipes.StreamParameters {
	if p == nil {
		p = &pipes.StreamParameters{}
	}
	if p.StartingPosition == "" {
		p.StartingPosition = "TRIM_HORIZON"
	}
	if p.BatchSize == 0 {
		p.BatchSize = 100
	}
	return p
}

func sourceService(arn string) string {
	parts := strings.SplitN(arn, ":", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
