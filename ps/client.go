package ps

// ParameterServerClient is the narrow facade WorkerLogic sees. It
// carries the emit callbacks and the local partition index so the
// configured WorkerSender can stamp WorkerPartition on outgoing
// messages; it is constructed fresh (or reused with swapped callbacks)
// per invocation by the worker partition runtime and must not be
// retained by user logic past the handler call it was passed to.
type ParameterServerClient[PullP, PushP, Out any] struct {
	partition PartitionIndex
	sender    WorkerSender[PushP]
	emit      func(WorkerToServer[PushP])
	output    func(Out)
}

// NewParameterServerClient constructs a client facade for one handler
// invocation on the given worker partition.
func NewParameterServerClient[PullP, PushP, Out any](
	partition PartitionIndex,
	sender WorkerSender[PushP],
	emit func(WorkerToServer[PushP]),
	output func(Out),
) *ParameterServerClient[PullP, PushP, Out] {
	return &ParameterServerClient[PullP, PushP, Out]{
		partition: partition,
		sender:    sender,
		emit:      emit,
		output:    output,
	}
}

// Pull requests the current value of id. The answer arrives later via
// WorkerLogic.OnPullRecv on this same worker partition.
func (c *ParameterServerClient[PullP, PushP, Out]) Pull(id ParamId) {
	c.sender.OnPull(id, c.emit, c.partition)
}

// Push sends delta as an update for id.
func (c *ParameterServerClient[PullP, PushP, Out]) Push(id ParamId, delta PushP) {
	c.sender.OnPush(id, delta, c.emit, c.partition)
}

// Output emits a worker-tier result record to the pipeline's output sink.
func (c *ParameterServerClient[PullP, PushP, Out]) Output(w Out) {
	c.output(w)
}
