package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogicLazyInitThenFold(t *testing.T) {
	logic := NewDefaultLogic[float64](
		func(ParamId) float64 { return 10 },
		func(old, delta float64) float64 { return old + delta },
	)
	var pulled float64
	srv := NewParameterServer[float64, ParamOutput[float64]](nil, func(ServerToWorker[float64]) {}, func(ParamOutput[float64]) {})

	err := logic.Open(Config{}, RuntimeContext{})
	assert.NoError(t, err)

	// First pull initializes the parameter lazily.
	srv2 := NewParameterServer[float64, ParamOutput[float64]](fakePSSender{onAnswer: func(id ParamId, v float64, wp PartitionIndex) {
		pulled = v
	}}, func(ServerToWorker[float64]) {}, func(ParamOutput[float64]) {})
	assert.NoError(t, logic.OnPullRecv(1, 0, srv2))
	assert.Equal(t, float64(10), pulled)

	assert.NoError(t, logic.OnPushRecv(1, 5, srv))
	assert.Equal(t, float64(15), logic.state[1])
}

func TestDefaultLogicPushWithoutPullSeeds(t *testing.T) {
	logic := NewDefaultLogic[float64](
		func(ParamId) float64 { return 0 },
		func(old, delta float64) float64 { return old + delta },
	)
	assert.NoError(t, logic.Open(Config{}, RuntimeContext{}))
	srv := NewParameterServer[float64, ParamOutput[float64]](nil, func(ServerToWorker[float64]) {}, func(ParamOutput[float64]) {})

	// No pull has happened yet: a push seeds the value directly,
	// the symmetric default PS's defined behavior (spec §3 invariant 3).
	assert.NoError(t, logic.OnPushRecv(7, 3, srv))
	assert.Equal(t, float64(3), logic.state[7])
}

func TestDefaultLooseLogicRejectsPushBeforePull(t *testing.T) {
	logic := NewDefaultLooseLogic[float64, int](
		func(ParamId) float64 { return 0 },
		func(old float64, delta int) float64 { return old + float64(delta) },
	)
	assert.NoError(t, logic.Open(Config{}, RuntimeContext{}))
	srv := NewParameterServer[float64, ParamOutput[float64]](nil, func(ServerToWorker[float64]) {}, func(ParamOutput[float64]) {})

	err := logic.OnPushRecv(1, 3, srv)
	assert.Error(t, err)
	assert.IsType(t, ErrPushBeforePull{}, err)
}

func TestDefaultLooseLogicAcceptsPushAfterPull(t *testing.T) {
	logic := NewDefaultLooseLogic[float64, int](
		func(ParamId) float64 { return 1 },
		func(old float64, delta int) float64 { return old + float64(delta) },
	)
	assert.NoError(t, logic.Open(Config{}, RuntimeContext{}))
	srv := NewParameterServer[float64, ParamOutput[float64]](fakePSSender{onAnswer: func(ParamId, float64, PartitionIndex) {}}, func(ServerToWorker[float64]) {}, func(ParamOutput[float64]) {})

	assert.NoError(t, logic.OnPullRecv(1, 0, srv))
	assert.NoError(t, logic.OnPushRecv(1, 4, srv))
	assert.Equal(t, float64(5), logic.state[1])
}

type fakePSSender struct {
	onAnswer func(id ParamId, value float64, workerPartition PartitionIndex)
}

func (f fakePSSender) OnPullAnswer(id ParamId, value float64, workerPartition PartitionIndex, emit func(ServerToWorker[float64])) {
	f.onAnswer(id, value, workerPartition)
}
