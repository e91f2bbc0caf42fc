// Package pipes holds the control-plane data model and registry for the
// EventBridge Pipes emulator: the PipeEntity record, its ARN derivation, and
// the per-(account,region) store that the control-plane operations mutate.
package pipes

import (
	"regexp"
	"time"
)

// DesiredState is the user-requested target lifecycle state.
type DesiredState string

const (
	DesiredRunning DesiredState = "RUNNING"
	DesiredStopped DesiredState = "STOPPED"
	DesiredDeleted DesiredState = "DELETED"
)

// CurrentState is what the worker/registry has actually achieved.
type CurrentState string

const (
	StateCreating     CurrentState = "CREATING"
	StateStarting     CurrentState = "STARTING"
	StateRunning      CurrentState = "RUNNING"
	StateStopping     CurrentState = "STOPPING"
	StateStopped      CurrentState = "STOPPED"
	StateUpdating     CurrentState = "UPDATING"
	StateDeleting     CurrentState = "DELETING"
	StateCreateFailed CurrentState = "CREATE_FAILED"
	StateStopFailed   CurrentState = "STOP_FAILED"
)

var pipeNamePattern = regexp.MustCompile(`^[.\-_A-Za-z0-9]+$`)

const pipeNameMaxLength = 64

// ValidatePipeName enforces the spec's name constraint: 1-64 chars matching
// [.\-_A-Za-z0-9]+.
func ValidatePipeName(name string) error {
	if name == "" || len(name) > pipeNameMaxLength || !pipeNamePattern.MatchString(name) {
		return NewValidationError(
			"1 validation error detected: Value '%s' at 'name' failed to satisfy constraint: "+
				"Member must satisfy regular expression pattern: [.\\-_A-Za-z0-9]+ and have length between 1 and %d",
			name, pipeNameMaxLength,
		)
	}
	return nil
}

// SourceParameters groups the per-service source configuration. Only the
// group matching the source ARN's service is populated by a given pipe, but
// all groups round-trip through describe/update untouched.
type SourceParameters struct {
	SqsQueueParameters       *SqsQueueParameters       `json:"SqsQueueParameters,omitempty"`
	KinesisStreamParameters  *StreamParameters         `json:"KinesisStreamParameters,omitempty"`
	DynamoDBStreamParameters *StreamParameters         `json:"DynamoDBStreamParameters,omitempty"`
}

type SqsQueueParameters struct {
	// Reserved for future SQS-source-specific knobs (batching window, etc).
	// Empty today — the spec defaults this group to {} when unset.
}

type StreamParameters struct {
	StartingPosition string `json:"StartingPosition,omitempty"`
	BatchSize        int    `json:"BatchSize,omitempty"`
}

// TargetParameters groups the per-service target configuration plus the
// optional InputTemplate, which applies regardless of target service.
type TargetParameters struct {
	SqsQueueParameters      *SqsTargetParameters      `json:"SqsQueueParameters,omitempty"`
	KinesisStreamParameters *KinesisTargetParameters  `json:"KinesisStreamParameters,omitempty"`
	HttpParameters          *HttpParameters           `json:"HttpParameters,omitempty"`
	InputTemplate           string                    `json:"InputTemplate,omitempty"`
}

type SqsTargetParameters struct {
	MessageGroupId         string `json:"MessageGroupId,omitempty"`
	MessageDeduplicationId string `json:"MessageDeduplicationId,omitempty"`
}

type KinesisTargetParameters struct {
	PartitionKey string `json:"PartitionKey,omitempty"`
}

type HttpParameters struct {
	HeaderParameters      map[string]string `json:"HeaderParameters,omitempty"`
	QueryStringParameters map[string]string `json:"QueryStringParameters,omitempty"`
	PathParameterValues   []string          `json:"PathParameterValues,omitempty"`
}

// PipeEntity is the one record per (account, region, name). Invariant 5: Arn
// is never stored, only derived from (Name, AccountID, Region).
type PipeEntity struct {
	Name      string
	AccountID string
	Region    string

	Source  string
	Target  string
	RoleArn string

	Description         string
	KmsKeyIdentifier    string
	LogConfiguration    map[string]interface{}
	Enrichment          string
	EnrichmentParameters map[string]interface{}

	SourceParameters *SourceParameters
	TargetParameters *TargetParameters

	DesiredState DesiredState
	CurrentState CurrentState
	StateReason  string

	Tags map[string]string

	CreationTime     time.Time
	LastModifiedTime time.Time
}

// Arn derives the pipe's ARN. Never stored independently (invariant 5).
func (p *PipeEntity) Arn() string {
	return PipeArn(p.Name, p.AccountID, p.Region)
}

// PipeArn formats the canonical pipe ARN: arn:aws:pipes:<region>:<account>:pipe/<name>.
func PipeArn(name, accountID, region string) string {
	return "arn:aws:pipes:" + region + ":" + accountID + ":pipe/" + name
}

var pipeArnPattern = regexp.MustCompile(`^arn:aws:pipes:([^:]+):([^:]+):pipe/(.+)$`)

// ParsePipeArn recovers (name, accountID, region) from a pipe ARN. Grounded
// on provider.py's PIPE_NAME_REGEX_PATTERN used to resolve tag operations,
// which address a pipe by ARN rather than by (account, region, name).
func ParsePipeArn(arn string) (name, accountID, region string, err error) {
	m := pipeArnPattern.FindStringSubmatch(arn)
	if m == nil {
		return "", "", "", NewValidationError("Arn %s is not a valid pipe ARN", arn)
	}
	return m[3], m[2], m[1], nil
}

// Snapshot returns a shallow copy safe to hand to a caller after the entity
// has been removed from the registry (e.g. the response to Delete).
func (p *PipeEntity) Snapshot() PipeEntity {
	cp := *p
	return cp
}
