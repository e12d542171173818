package ps

// WorkerSender wraps a pull(id) or push(id, delta) into a wire message
// destined for a server partition. Each method emits exactly one
// message, tagged with workerPartition so the answer finds its way
// home.
type WorkerSender[PushP any] interface {
	OnPull(id ParamId, emit func(WorkerToServer[PushP]), workerPartition PartitionIndex)
	OnPush(id ParamId, delta PushP, emit func(WorkerToServer[PushP]), workerPartition PartitionIndex)
}

// PSReceiver decodes an inbound worker-to-server message at the server
// and dispatches it to exactly one of onPull or onPush.
type PSReceiver[PushP any] interface {
	OnWorkerMsg(
		msg WorkerToServer[PushP],
		onPull func(id ParamId, workerPartition PartitionIndex),
		onPush func(id ParamId, delta PushP, workerPartition PartitionIndex),
	)
}

// PSSender wraps a pull answer into a wire message destined for a
// specific worker partition.
type PSSender[PullP any] interface {
	OnPullAnswer(id ParamId, value PullP, workerPartition PartitionIndex, emit func(ServerToWorker[PullP]))
}

// WorkerReceiver decodes an inbound server-to-worker message at the
// worker and dispatches it to the pull-answer callback.
type WorkerReceiver[PullP any] interface {
	OnPullAnswerRecv(msg ServerToWorker[PullP], onAnswer func(id ParamId, value PullP, eom bool))
}
