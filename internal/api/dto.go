package api

import (
	"time"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// pipeResponse is the wire shape for a single pipe record, field-named to
// match the AWS Pipes API (PascalCase) rather than Go's own model.
type pipeResponse struct {
	Name                 string                     `json:"Name"`
	Arn                  string                     `json:"Arn"`
	Source               string                     `json:"Source"`
	Target               string                     `json:"Target"`
	RoleArn              string                     `json:"RoleArn"`
	Description          string                     `json:"Description,omitempty"`
	KmsKeyIdentifier     string                     `json:"KmsKeyIdentifier,omitempty"`
	Enrichment           string                     `json:"Enrichment,omitempty"`
	EnrichmentParameters map[string]interface{}     `json:"EnrichmentParameters,omitempty"`
	SourceParameters     *pipes.SourceParameters    `json:"SourceParameters,omitempty"`
	TargetParameters     *pipes.TargetParameters    `json:"TargetParameters,omitempty"`
	DesiredState         pipes.DesiredState         `json:"DesiredState"`
	CurrentState         pipes.CurrentState         `json:"CurrentState"`
	StateReason          string                     `json:"StateReason,omitempty"`
	Tags                 map[string]string          `json:"Tags,omitempty"`
	CreationTime         time.Time                  `json:"CreationTime"`
	LastModifiedTime     time.Time                  `json:"LastModifiedTime"`
}

func toPipeResponse(e *pipes.PipeEntity) pipeResponse {
	return pipeResponse{
		Name:                 e.Name,
		Arn:                  e.Arn(),
		Source:               e.Source,
		Target:               e.Target,
		RoleArn:              e.RoleArn,
		Description:          e.Description,
		KmsKeyIdentifier:     e.KmsKeyIdentifier,
		Enrichment:           e.Enrichment,
		EnrichmentParameters: e.EnrichmentParameters,
		SourceParameters:     e.SourceParameters,
		TargetParameters:     e.TargetParameters,
		DesiredState:         e.DesiredState,
		CurrentState:         e.CurrentState,
		StateReason:          e.StateReason,
		Tags:                 e.Tags,
		CreationTime:         e.CreationTime,
		LastModifiedTime:     e.LastModifiedTime,
	}
}

// pipeSummary is the trimmed shape ListPipes returns for each entry,
// matching the AWS API's lighter-weight list response.
type pipeSummary struct {
	Name             string             `json:"Name"`
	Arn              string             `json:"Arn"`
	Source           string             `json:"Source"`
	Target           string             `json:"Target"`
	DesiredState     pipes.DesiredState `json:"DesiredState"`
	CurrentState     pipes.CurrentState `json:"CurrentState"`
	CreationTime     time.Time          `json:"CreationTime"`
	LastModifiedTime time.Time          `json:"LastModifiedTime"`
}

func toPipeSummary(e *pipes.PipeEntity) pipeSummary {
	return pipeSummary{
		Name:             e.Name,
		Arn:              e.Arn(),
		Source:           e.Source,
		Target:           e.Target,
		DesiredState:     e.DesiredState,
		CurrentState:     e.CurrentState,
		CreationTime:     e.CreationTime,
		LastModifiedTime: e.LastModifiedTime,
	}
}

type createPipeRequest struct {
	Name                 string                  `json:"Name"`
	Source               string                  `json:"Source"`
	Target               string                  `json:"Target"`
	RoleArn              string                  `json:"RoleArn"`
	Description          string                  `json:"Description,omitempty"`
	KmsKeyIdentifier     string                  `json:"KmsKeyIdentifier,omitempty"`
	LogConfiguration     map[string]interface{}  `json:"LogConfiguration,omitempty"`
	Enrichment           string                  `json:"Enrichment,omitempty"`
	EnrichmentParameters map[string]interface{}  `json:"EnrichmentParameters,omitempty"`
	SourceParameters     *pipes.SourceParameters `json:"SourceParameters,omitempty"`
	TargetParameters     *pipes.TargetParameters `json:"TargetParameters,omitempty"`
	DesiredState         pipes.DesiredState      `json:"DesiredState,omitempty"`
	Tags                 map[string]string       `json:"Tags,omitempty"`
}

type updatePipeRequest struct {
	Source           string                  `json:"Source,omitempty"`
	Target           string                  `json:"Target,omitempty"`
	RoleArn          string                  `json:"RoleArn,omitempty"`
	Description      *string                 `json:"Description,omitempty"`
	SourceParameters *pipes.SourceParameters `json:"SourceParameters,omitempty"`
	TargetParameters *pipes.TargetParameters `json:"TargetParameters,omitempty"`
	DesiredState     pipes.DesiredState      `json:"DesiredState,omitempty"`
}

type tagResourceRequest struct {
	ResourceArn string            `json:"ResourceArn"`
	Tags        map[string]string `json:"Tags"`
}

type untagResourceRequest struct {
	ResourceArn string   `json:"ResourceArn"`
	TagKeys     []string `json:"TagKeys"`
}

type errorResponse struct {
	Error string `json:"error"`
}
