package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/golang/snappy"

	"github.com/latticeflow/psflow/ps"
)

// wireWorkerMsg is the gob-encodable payload a SnappyWorkerSender
// compresses into WorkerToServer.Raw. The envelope's ParamID is also
// set so the worker-to-server router can pick the owning server
// partition; its Kind and Delta fields are left at their zero values and
// ignored by the matching SnappyPSReceiver.
type wireWorkerMsg[PushP any] struct {
	Kind    ps.Kind
	ParamID ps.ParamId
	Delta   PushP
}

type wireServerMsg[PullP any] struct {
	ParamID ps.ParamId
	Value   PullP
	EOM     bool
}

func encodeSnappy(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("codec: gob encode: %w", err)
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

func decodeSnappy(raw []byte, v any) error {
	plain, err := snappy.Decode(nil, raw)
	if err != nil {
		return fmt.Errorf("codec: snappy decode: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(v); err != nil {
		return fmt.Errorf("codec: gob decode: %w", err)
	}
	return nil
}

// SnappyWorkerSender realizes the "compressed/batched" alternative
// transport spec §4.3 calls out as a reason the codec boundary is
// pluggable: it gob-encodes the pull/push payload and compresses it
// with snappy before handing the envelope to emit.
type SnappyWorkerSender[PushP any] struct{}

func (SnappyWorkerSender[PushP]) OnPull(id ps.ParamId, emit func(ps.WorkerToServer[PushP]), workerPartition ps.PartitionIndex) {
	raw, err := encodeSnappy(wireWorkerMsg[PushP]{Kind: ps.KindPull, ParamID: id})
	if err != nil {
		panic(err)
	}
	emit(ps.WorkerToServer[PushP]{WorkerPartition: workerPartition, ParamID: id, Raw: raw})
}

func (SnappyWorkerSender[PushP]) OnPush(id ps.ParamId, delta PushP, emit func(ps.WorkerToServer[PushP]), workerPartition ps.PartitionIndex) {
	raw, err := encodeSnappy(wireWorkerMsg[PushP]{Kind: ps.KindPush, ParamID: id, Delta: delta})
	if err != nil {
		panic(err)
	}
	emit(ps.WorkerToServer[PushP]{WorkerPartition: workerPartition, ParamID: id, Raw: raw})
}

// SnappyPSReceiver decompresses and gob-decodes the envelope's Raw
// field and dispatches on the decoded Kind.
type SnappyPSReceiver[PushP any] struct{}

func (SnappyPSReceiver[PushP]) OnWorkerMsg(
	msg ps.WorkerToServer[PushP],
	onPull func(id ps.ParamId, workerPartition ps.PartitionIndex),
	onPush func(id ps.ParamId, delta PushP, workerPartition ps.PartitionIndex),
) {
	var w wireWorkerMsg[PushP]
	if err := decodeSnappy(msg.Raw, &w); err != nil {
		panic(err)
	}
	switch w.Kind {
	case ps.KindPull:
		onPull(w.ParamID, msg.WorkerPartition)
	case ps.KindPush:
		onPush(w.ParamID, w.Delta, msg.WorkerPartition)
	}
}

// SnappyPSSender is the server-side half of the compressed codec pair.
type SnappyPSSender[PullP any] struct{}

func (SnappyPSSender[PullP]) OnPullAnswer(id ps.ParamId, value PullP, workerPartition ps.PartitionIndex, emit func(ps.ServerToWorker[PullP])) {
	raw, err := encodeSnappy(wireServerMsg[PullP]{ParamID: id, Value: value})
	if err != nil {
		panic(err)
	}
	emit(ps.ServerToWorker[PullP]{WorkerPartition: workerPartition, Raw: raw})
}

// SnappyWorkerReceiver is the worker-side half of the compressed codec
// pair.
type SnappyWorkerReceiver[PullP any] struct{}

func (SnappyWorkerReceiver[PullP]) OnPullAnswerRecv(msg ps.ServerToWorker[PullP], onAnswer func(id ps.ParamId, value PullP, eom bool)) {
	var w wireServerMsg[PullP]
	if err := decodeSnappy(msg.Raw, &w); err != nil {
		panic(err)
	}
	onAnswer(w.ParamID, w.Value, w.EOM)
}
