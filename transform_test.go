package psflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	psflow "github.com/latticeflow/psflow"
	"github.com/latticeflow/psflow/ps"
)

type pushRecord struct {
	ParamID ps.ParamId
	Delta   float64
}

type pullResult struct {
	ParamID ps.ParamId
	Value   float64
}

type pushOnlyWorker struct{}

func (pushOnlyWorker) Open(ps.Config, ps.RuntimeContext) error { return nil }
func (pushOnlyWorker) OnRecv(rec pushRecord, client *ps.ParameterServerClient[float64, float64, pullResult]) error {
	client.Push(rec.ParamID, rec.Delta)
	return nil
}
func (pushOnlyWorker) OnPullRecv(id ps.ParamId, value float64, client *ps.ParameterServerClient[float64, float64, pullResult]) error {
	client.Output(pullResult{ParamID: id, Value: value})
	return nil
}
func (pushOnlyWorker) Close() error { return nil }

func TestTransformSumsPushesPerParam(t *testing.T) {
	const numWorkers = 3
	const numServers = 2
	const recordsPerWorker = 25

	trainingData := make([]<-chan pushRecord, numWorkers)
	for i := 0; i < numWorkers; i++ {
		ch := make(chan pushRecord, recordsPerWorker)
		for j := 0; j < recordsPerWorker; j++ {
			ch <- pushRecord{ParamID: ps.ParamId(i), Delta: 1}
		}
		close(ch)
		trainingData[i] = ch
	}

	cfg := ps.Config{
		WorkerParallelism: numWorkers,
		ServerParallelism: numServers,
		IterationWaitTime: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, errCh := psflow.Transform[float64, pushRecord, pullResult](
		ctx, trainingData,
		func(ps.PartitionIndex) ps.WorkerLogic[float64, float64, pushRecord, pullResult] { return pushOnlyWorker{} },
		func(ps.ParamId) float64 { return 0 },
		func(old, delta float64) float64 { return old + delta },
		cfg,
	)

	totals := map[ps.ParamId]float64{}
	for e := range out {
		if !e.IsLeft {
			totals[e.Right.ID] = e.Right.Value
		}
	}
	assert.NoError(t, <-errCh)

	for i := 0; i < numWorkers; i++ {
		assert.Equal(t, float64(recordsPerWorker), totals[ps.ParamId(i)])
	}
}

func TestTransformRejectsBadConfig(t *testing.T) {
	cfg := ps.Config{WorkerParallelism: 0, ServerParallelism: 1}
	_, errCh := psflow.Transform[float64, pushRecord, pullResult](
		context.Background(), nil,
		func(ps.PartitionIndex) ps.WorkerLogic[float64, float64, pushRecord, pullResult] { return pushOnlyWorker{} },
		func(ps.ParamId) float64 { return 0 },
		func(old, delta float64) float64 { return old + delta },
		cfg,
	)
	assert.Error(t, <-errCh)
}
