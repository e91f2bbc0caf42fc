package pipes

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WorkerLifecycle is the subset of internal/worker.Manager the registry needs
// in order to react to desired-state transitions. Defined here (rather than
// importing internal/worker directly) so pipes has no dependency on the
// worker package — worker depends on pipes for its types, not the reverse.
type WorkerLifecycle interface {
	// StartWorker begins (or resumes) the background poll loop for a RUNNING
	// pipe. Fire-and-forget: it must not block the calling control-plane
	// operation (spec §5: "StartPipe returns immediately").
	StartWorker(pipe *PipeEntity)
	// StopWorker requests the named pipe's worker stop; it returns once the
	// stop has been requested, not once the worker has actually exited.
	StopWorker(accountID, region, name string)
}

// Registry implements the control-plane operations (spec §6) over a Store. It
// owns name/ARN validation, desired/current state transitions, and tag
// bookkeeping; it delegates the actual data-plane work to WorkerLifecycle.
type Registry struct {
	store    *Store
	workers  WorkerLifecycle
	log      *zap.Logger
	nowFunc  func() time.Time
}

func NewRegistry(store *Store, workers WorkerLifecycle, log *zap.Logger) *Registry {
	return &Registry{
		store:   store,
		workers: workers,
		log:     log,
		nowFunc: time.Now,
	}
}

// CreatePipeInput mirrors the CreatePipe request shape (spec §6).
type CreatePipeInput struct {
	AccountID        string
	Region           string
	Name             string
	Source           string
	Target           string
	RoleArn          string
	Description      string
	KmsKeyIdentifier string
	LogConfiguration map[string]interface{}
	Enrichment       string
	EnrichmentParameters map[string]interface{}
	SourceParameters *SourceParameters
	TargetParameters *TargetParameters
	DesiredState     DesiredState
	Tags             map[string]string
}

// CreatePipe validates and inserts a new pipe record. If DesiredState is
// RUNNING (the default when unset), the record moves from CREATING to
// STARTING and its worker is started; a pipe created STOPPED goes straight
// to STOPPED without any worker call, mirroring provider.py's create_pipe
// immediately transitioning into the requested state.
func (r *Registry) CreatePipe(ctx context.Context, in CreatePipeInput) (*PipeEntity, error) {
	if err := ValidatePipeName(in.Name); err != nil {
		return nil, err
	}
	if in.Source == "" {
		return nil, NewValidationError("Source is required")
	}
	if in.Target == "" {
		return nil, NewValidationError("Target is required")
	}
	if in.RoleArn == "" {
		return nil, NewValidationError("RoleArn is required")
	}
	if existing := r.store.Get(in.AccountID, in.Region, in.Name); existing != nil {
		return nil, NewConflictError("PIPE", in.Name, "Pipe %s already exists", in.Name)
	}

	desired := in.DesiredState
	if desired == "" {
		desired = DesiredRunning
	}

	now := r.nowFunc()
	entity := &PipeEntity{
		Name:                 in.Name,
		AccountID:            in.AccountID,
		Region:               in.Region,
		Source:               in.Source,
		Target:               in.Target,
		RoleArn:              in.RoleArn,
		Description:          in.Description,
		KmsKeyIdentifier:     in.KmsKeyIdentifier,
		LogConfiguration:     in.LogConfiguration,
		Enrichment:           in.Enrichment,
		EnrichmentParameters: in.EnrichmentParameters,
		SourceParameters:     orDefaultSourceParameters(in.SourceParameters),
		TargetParameters:     orDefaultTargetParameters(in.TargetParameters),
		DesiredState:         desired,
		CurrentState:         StateCreating,
		Tags:                 copyTags(in.Tags),
		CreationTime:         now,
		LastModifiedTime:     now,
	}
	r.store.Put(in.AccountID, in.Region, entity)
	r.log.Info("pipe created", zap.String("pipe", in.Name), zap.String("desired_state", string(desired)))

	if desired == DesiredStopped {
		entity.CurrentState = StateStopped
	} else {
		r.applyDesiredState(entity)
	}
	return entity, nil
}

// DescribePipe returns the pipe record, or NotFoundError.
func (r *Registry) DescribePipe(ctx context.Context, accountID, region, name string) (*PipeEntity, error) {
	entity := r.store.Get(accountID, region, name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", name)
	}
	return entity, nil
}

// ListPipes returns matching pipes, capped at min(limit, 100) entries
// (spec §4.7). nextToken is accepted but unused: this registry always
// returns a single page (open question decision, SPEC_FULL §13).
func (r *Registry) ListPipes(ctx context.Context, accountID, region string, filter ListFilter, limit int, nextToken string) ([]*PipeEntity, string, error) {
	return r.store.List(accountID, region, filter, limit), "", nil
}

// UpdatePipeInput carries only the fields UpdatePipe may change; nil/zero
// means "leave unchanged" except for DesiredState, which is always applied
// when non-empty.
type UpdatePipeInput struct {
	AccountID        string
	Region           string
	Name             string
	Source           string
	Target           string
	RoleArn          string
	Description      *string
	SourceParameters *SourceParameters
	TargetParameters *TargetParameters
	DesiredState     DesiredState
}

// UpdatePipe mutates an existing pipe's configuration. A change of
// DesiredState re-runs the start/stop lifecycle the same way StartPipe/
// StopPipe would (spec §6: UpdatePipe's DesiredState field behaves like a
// combined start/stop).
func (r *Registry) UpdatePipe(ctx context.Context, in UpdatePipeInput) (*PipeEntity, error) {
	entity := r.store.Get(in.AccountID, in.Region, in.Name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", in.Name)
	}

	entity.CurrentState = StateUpdating
	if in.Source != "" {
		entity.Source = in.Source
	}
	if in.Target != "" {
		entity.Target = in.Target
	}
	if in.RoleArn != "" {
		entity.RoleArn = in.RoleArn
	}
	if in.Description != nil {
		entity.Description = *in.Description
	}
	if in.SourceParameters != nil {
		entity.SourceParameters = in.SourceParameters
	}
	if in.TargetParameters != nil {
		entity.TargetParameters = in.TargetParameters
	}
	if in.DesiredState != "" {
		entity.DesiredState = in.DesiredState
	}
	entity.LastModifiedTime = r.nowFunc()

	r.applyDesiredState(entity)
	return entity, nil
}

// DeletePipe stops any running worker and removes the record. Per spec §6,
// Delete is itself asynchronous in current_state terms, but since this
// emulator has no persistence layer to race against, the removal is
// immediate once the worker stop has been requested.
func (r *Registry) DeletePipe(ctx context.Context, accountID, region, name string) (*PipeEntity, error) {
	entity := r.store.Get(accountID, region, name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", name)
	}
	entity.DesiredState = DesiredDeleted
	entity.CurrentState = StateDeleting
	if r.workers != nil {
		r.workers.StopWorker(accountID, region, name)
	}
	removed := r.store.Delete(accountID, region, name)
	r.log.Info("pipe deleted", zap.String("pipe", name))
	return removed, nil
}

// StartPipe sets DesiredState to RUNNING and starts the worker. A pipe whose
// DesiredState is already RUNNING is a conflict, matching provider.py's
// start_pipe (lines 256-261), which raises rather than silently no-oping.
func (r *Registry) StartPipe(ctx context.Context, accountID, region, name string) (*PipeEntity, error) {
	entity := r.store.Get(accountID, region, name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", name)
	}
	if entity.DesiredState == DesiredRunning {
		return nil, NewConflictError("PIPE", name, "Pipe %s is already running", name)
	}
	entity.DesiredState = DesiredRunning
	entity.LastModifiedTime = r.nowFunc()
	r.applyDesiredState(entity)
	return entity, nil
}

// StopPipe sets DesiredState to STOPPED and requests the worker stop. A pipe
// whose DesiredState is already STOPPED is a conflict, matching provider.py's
// stop_pipe (lines 282-287).
func (r *Registry) StopPipe(ctx context.Context, accountID, region, name string) (*PipeEntity, error) {
	entity := r.store.Get(accountID, region, name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", name)
	}
	if entity.DesiredState == DesiredStopped {
		return nil, NewConflictError("PIPE", name, "Pipe %s is already stopped", name)
	}
	entity.DesiredState = DesiredStopped
	entity.LastModifiedTime = r.nowFunc()
	r.applyDesiredState(entity)
	return entity, nil
}

// applyDesiredState reconciles CurrentState/worker lifecycle with
// DesiredState. It does not block: the worker's own loop is responsible for
// advancing CurrentState from STARTING to RUNNING (spec §5).
func (r *Registry) applyDesiredState(entity *PipeEntity) {
	switch entity.DesiredState {
	case DesiredRunning:
		if entity.CurrentState == StateRunning || entity.CurrentState == StateStarting {
			return
		}
		entity.CurrentState = StateStarting
		if r.workers != nil {
			r.workers.StartWorker(entity)
		}
	case DesiredStopped:
		if entity.CurrentState == StateStopped || entity.CurrentState == StateStopping {
			return
		}
		entity.CurrentState = StateStopping
		if r.workers != nil {
			r.workers.StopWorker(entity.AccountID, entity.Region, entity.Name)
		}
	}
}

// MarkRunning and MarkStopped let the worker report its own state back into
// the registry once its loop has actually reached that point.
func (r *Registry) MarkRunning(accountID, region, name string) {
	if entity := r.store.Get(accountID, region, name); entity != nil {
		entity.CurrentState = StateRunning
		entity.StateReason = ""
	}
}

func (r *Registry) MarkStopped(accountID, region, name, reason string) {
	if entity := r.store.Get(accountID, region, name); entity != nil {
		entity.CurrentState = StateStopped
		entity.StateReason = reason
	}
}

func (r *Registry) MarkStopFailed(accountID, region, name, reason string) {
	if entity := r.store.Get(accountID, region, name); entity != nil {
		entity.CurrentState = StateStopFailed
		entity.StateReason = reason
	}
}

// MarkCreateFailed records that the worker could not be built/started for a
// pipe whose desired state is RUNNING, mirroring provider.py's
// _start_pipe_worker catching the factory/start exception and setting
// CREATE_FAILED with a reason instead of leaving the pipe stuck STARTING.
func (r *Registry) MarkCreateFailed(accountID, region, name, reason string) {
	if entity := r.store.Get(accountID, region, name); entity != nil {
		entity.CurrentState = StateCreateFailed
		entity.StateReason = reason
	}
}

// --- Tagging (spec §6: TagResource/UntagResource/ListTagsForResource operate
// by ARN, independent of the caller's own account/region context, so the
// ARN is parsed to find the owning partition.) ---

func (r *Registry) TagResource(ctx context.Context, arn string, tags map[string]string) error {
	entity, err := r.lookupByArn(arn)
	if err != nil {
		return err
	}
	if entity.Tags == nil {
		entity.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		entity.Tags[k] = v
	}
	return nil
}

func (r *Registry) UntagResource(ctx context.Context, arn string, tagKeys []string) error {
	entity, err := r.lookupByArn(arn)
	if err != nil {
		return err
	}
	for _, k := range tagKeys {
		delete(entity.Tags, k)
	}
	return nil
}

func (r *Registry) ListTagsForResource(ctx context.Context, arn string) (map[string]string, error) {
	entity, err := r.lookupByArn(arn)
	if err != nil {
		return nil, err
	}
	return copyTags(entity.Tags), nil
}

func (r *Registry) lookupByArn(arn string) (*PipeEntity, error) {
	name, accountID, region, err := ParsePipeArn(arn)
	if err != nil {
		return nil, err
	}
	entity := r.store.Get(accountID, region, name)
	if entity == nil {
		return nil, NewNotFoundError("Pipe %s does not exist", name)
	}
	return entity, nil
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func orDefaultSourceParameters(p *SourceParameters) *SourceParameters {
	if p != nil {
		return p
	}
	return &SourceParameters{}
}

func orDefaultTargetParameters(p *TargetParameters) *TargetParameters {
	if p != nil {
		return p
	}
	return &TargetParameters{}
}
