// Package codec provides the concrete WorkerSender/PSReceiver/PSSender/
// WorkerReceiver implementations the fabric ships with: a zero-overhead
// default for the in-process transport, and a snappy-compressed
// alternative for transports where bytes on the wire actually matter.
package codec

import "github.com/latticeflow/psflow/ps"

// DefaultWorkerSender emits the typed message directly; no encoding
// happens because the in-process transport moves the Go value itself.
type DefaultWorkerSender[PushP any] struct{}

func (DefaultWorkerSender[PushP]) OnPull(id ps.ParamId, emit func(ps.WorkerToServer[PushP]), workerPartition ps.PartitionIndex) {
	emit(ps.WorkerToServer[PushP]{WorkerPartition: workerPartition, Kind: ps.KindPull, ParamID: id})
}

func (DefaultWorkerSender[PushP]) OnPush(id ps.ParamId, delta PushP, emit func(ps.WorkerToServer[PushP]), workerPartition ps.PartitionIndex) {
	emit(ps.WorkerToServer[PushP]{WorkerPartition: workerPartition, Kind: ps.KindPush, ParamID: id, Delta: delta})
}

// DefaultPSReceiver dispatches on the typed Kind field.
type DefaultPSReceiver[PushP any] struct{}

func (DefaultPSReceiver[PushP]) OnWorkerMsg(
	msg ps.WorkerToServer[PushP],
	onPull func(id ps.ParamId, workerPartition ps.PartitionIndex),
	onPush func(id ps.ParamId, delta PushP, workerPartition ps.PartitionIndex),
) {
	switch msg.Kind {
	case ps.KindPull:
		onPull(msg.ParamID, msg.WorkerPartition)
	case ps.KindPush:
		onPush(msg.ParamID, msg.Delta, msg.WorkerPartition)
	}
}

// DefaultPSSender emits the typed pull-answer message directly.
type DefaultPSSender[PullP any] struct{}

func (DefaultPSSender[PullP]) OnPullAnswer(id ps.ParamId, value PullP, workerPartition ps.PartitionIndex, emit func(ps.ServerToWorker[PullP])) {
	emit(ps.ServerToWorker[PullP]{WorkerPartition: workerPartition, ParamID: id, Value: value})
}

// DefaultWorkerReceiver dispatches the typed pull-answer straight
// through.
type DefaultWorkerReceiver[PullP any] struct{}

func (DefaultWorkerReceiver[PullP]) OnPullAnswerRecv(msg ps.ServerToWorker[PullP], onAnswer func(id ps.ParamId, value PullP, eom bool)) {
	onAnswer(msg.ParamID, msg.Value, msg.EOM)
}
