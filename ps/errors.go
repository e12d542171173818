package ps

import "fmt"

// ErrRoutingInvariant is returned (and logged at Error by the
// server-to-worker router that detects it, which then aborts the job,
// per error taxonomy item 2) when a
// ServerToWorker message's embedded partition falls outside
// [0, WorkerParallelism). It indicates a broken PSSender or
// ServerToWorkerPartitioner, not a transient condition, so the fabric
// does not retry it.
type ErrRoutingInvariant struct {
	WorkerPartition PartitionIndex
	NumWorkers      int
}

func (e ErrRoutingInvariant) Error() string {
	return fmt.Sprintf("pull answer key should be the partition ID itself: got worker partition %d, have %d worker partitions", e.WorkerPartition, e.NumWorkers)
}

// ErrModelLoadIncomplete is the bootstrap defect spec §7 item 3
// describes: a worker model-partition closed without ever emitting a
// record, leaving that worker partition's share of the model undefined.
type ErrModelLoadIncomplete struct {
	WorkerPartition PartitionIndex
}

func (e ErrModelLoadIncomplete) Error() string {
	return fmt.Sprintf("must be a parameter per model partition when loading model: worker partition %d received none", e.WorkerPartition)
}

// ErrUnexpectedEOM is logged by the worker runtime when a
// WorkerReceiver reports a pull answer as a synthetic EOM keepalive
// (spec §4.5's double-load liveness mechanism) instead of a real value;
// the answer is then not passed to user logic — protocol confusion per
// error taxonomy item 3.
type ErrUnexpectedEOM struct {
	ParamID ParamId
}

func (e ErrUnexpectedEOM) Error() string {
	return fmt.Sprintf("pull answer for param %d is a synthetic end-of-model marker, not a real value", e.ParamID)
}

// ErrPushBeforePull is returned by the asymmetric default PS logic when
// a push for an id arrives before any pull has initialized it. Unlike
// the symmetric default PS (where the pushed delta is usable as the
// initial value, PushP == PullP), the asymmetric case has no general
// PushP -> PullP coercion, so this is rejected rather than guessed at.
// See DESIGN.md, Open Question 1.
type ErrPushBeforePull struct {
	ParamID ParamId
}

func (e ErrPushBeforePull) Error() string {
	return fmt.Sprintf("param %d: push arrived before any pull; the asymmetric default PS requires pull-before-push, supply a seed via a custom ParameterServerLogic if that precondition cannot be met", e.ParamID)
}
