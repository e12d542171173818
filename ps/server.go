package ps

// ParameterServer is the narrow facade ParameterServerLogic sees.
type ParameterServer[PullP, Out any] struct {
	sender PSSender[PullP]
	emit   func(ServerToWorker[PullP])
	output func(Out)
}

// NewParameterServer constructs a server facade. The server partition
// runtimes build one per partition and pass it to every handler call.
func NewParameterServer[PullP, Out any](
	sender PSSender[PullP],
	emit func(ServerToWorker[PullP]),
	output func(Out),
) *ParameterServer[PullP, Out] {
	return &ParameterServer[PullP, Out]{sender: sender, emit: emit, output: output}
}

// AnswerPull sends value as the answer to a pending pull of id,
// directed to workerPartition — the worker partition that originally
// issued the pull (spec invariant 2, "answer affinity").
func (s *ParameterServer[PullP, Out]) AnswerPull(id ParamId, value PullP, workerPartition PartitionIndex) {
	s.sender.OnPullAnswer(id, value, workerPartition, s.emit)
}

// Output emits a server-tier result record to the pipeline's output sink.
func (s *ParameterServer[PullP, Out]) Output(o Out) {
	s.output(o)
}
