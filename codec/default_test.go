package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticeflow/psflow/ps"
)

func TestDefaultWorkerSenderPush(t *testing.T) {
	var got ps.WorkerToServer[float64]
	DefaultWorkerSender[float64]{}.OnPush(1, 3.5, func(m ps.WorkerToServer[float64]) { got = m }, 2)
	assert.Equal(t, ps.KindPush, got.Kind)
	assert.Equal(t, ps.ParamId(1), got.ParamID)
	assert.Equal(t, 3.5, got.Delta)
	assert.Equal(t, ps.PartitionIndex(2), got.WorkerPartition)
}

func TestDefaultPSReceiverDispatch(t *testing.T) {
	msg := ps.WorkerToServer[float64]{Kind: ps.KindPush, ParamID: 4, Delta: 1.5, WorkerPartition: 0}
	var pushed bool
	DefaultPSReceiver[float64]{}.OnWorkerMsg(msg,
		func(id ps.ParamId, wp ps.PartitionIndex) { t.Fatal("should not be onPull") },
		func(id ps.ParamId, delta float64, wp ps.PartitionIndex) {
			pushed = true
			assert.Equal(t, ps.ParamId(4), id)
			assert.Equal(t, 1.5, delta)
		},
	)
	assert.True(t, pushed)
}

func TestDefaultWorkerReceiverPassesEOM(t *testing.T) {
	msg := ps.ServerToWorker[float64]{ParamID: 1, Value: 2, EOM: true}
	var gotEOM bool
	DefaultWorkerReceiver[float64]{}.OnPullAnswerRecv(msg, func(id ps.ParamId, value float64, eom bool) {
		gotEOM = eom
	})
	assert.True(t, gotEOM)
}
