package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticeflow/psflow/ps"
)

func TestSnappyWorkerRoundTrip(t *testing.T) {
	var wire ps.WorkerToServer[float64]
	SnappyWorkerSender[float64]{}.OnPush(3, 9.5, func(m ps.WorkerToServer[float64]) { wire = m }, 1)
	assert.NotEmpty(t, wire.Raw)

	var gotID ps.ParamId
	var gotDelta float64
	SnappyPSReceiver[float64]{}.OnWorkerMsg(wire,
		func(id ps.ParamId, wp ps.PartitionIndex) { t.Fatal("should dispatch push, not pull") },
		func(id ps.ParamId, delta float64, wp ps.PartitionIndex) {
			gotID, gotDelta = id, delta
		},
	)
	assert.Equal(t, ps.ParamId(3), gotID)
	assert.Equal(t, 9.5, gotDelta)
}

func TestSnappyServerRoundTrip(t *testing.T) {
	var wire ps.ServerToWorker[float64]
	SnappyPSSender[float64]{}.OnPullAnswer(5, 2.25, 0, func(m ps.ServerToWorker[float64]) { wire = m })
	assert.NotEmpty(t, wire.Raw)

	var gotID ps.ParamId
	var gotValue float64
	SnappyWorkerReceiver[float64]{}.OnPullAnswerRecv(wire, func(id ps.ParamId, value float64, eom bool) {
		gotID, gotValue = id, value
		assert.False(t, eom)
	})
	assert.Equal(t, ps.ParamId(5), gotID)
	assert.Equal(t, 2.25, gotValue)
}
