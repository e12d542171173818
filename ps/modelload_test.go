package ps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingWorker struct{}

func newRecordingWorker() *recordingWorker {
	return &recordingWorker{}
}

func (w *recordingWorker) Open(Config, RuntimeContext) error { return nil }
func (w *recordingWorker) OnRecv(rec float64, client *ParameterServerClient[float64, float64, float64]) error {
	client.Push(0, rec)
	client.Pull(0)
	return nil
}
func (w *recordingWorker) OnPullRecv(id ParamId, value float64, client *ParameterServerClient[float64, float64, float64]) error {
	client.Output(value)
	return nil
}
func (w *recordingWorker) Close() error { return nil }

func TestRunLoadingEngineFoldsBufferedTrainingOntoLoadedModel(t *testing.T) {
	const W, S = 1, 1

	modelIn := make(chan ModelRecord[float64], 1)
	modelIn <- ModelRecord[float64]{ParamID: 0, Value: 100}
	close(modelIn)

	training := make(chan float64, 1)
	training <- 1
	close(training)

	cfg := Config{WorkerParallelism: W, ServerParallelism: S, IterationWaitTime: 30 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	worker := newRecordingWorker()
	psLogic := NewDefaultLogic[float64](func(ParamId) float64 { return -1 }, func(old, delta float64) float64 { return old + delta })

	out, errCh := RunLoadingEngine[float64, float64, float64, ParamOutput[float64]](
		ctx, cfg,
		[]<-chan float64{training},
		[]<-chan ModelRecord[float64]{modelIn},
		nil, false,
		[]WorkerLogic[float64, float64, float64, float64]{worker},
		[]ParameterServerLogic[float64, float64, ParamOutput[float64]]{psLogic},
		dummyW2S{}, dummyS2W{},
		dummySender{}, DefaultPSReceiverAdapter{}, dummyPSSender{}, dummyWorkerReceiver{},
	)

	var sawFinal float64
	for e := range out {
		if !e.IsLeft {
			sawFinal = e.Right.Value
		}
	}
	assert.NoError(t, <-errCh)
	// Loaded model value (100) plus the buffered training push (1).
	assert.Equal(t, float64(101), sawFinal)
}

type dummyW2S struct{}

func (dummyW2S) Partition(id ParamId, numServers int) PartitionIndex { return 0 }

type dummyS2W struct{}

func (dummyS2W) Partition(workerPartition PartitionIndex, numWorkers int) (PartitionIndex, error) {
	return workerPartition, nil
}

type dummySender struct{}

func (dummySender) OnPull(id ParamId, emit func(WorkerToServer[float64]), workerPartition PartitionIndex) {
	emit(WorkerToServer[float64]{WorkerPartition: workerPartition, Kind: KindPull, ParamID: id})
}
func (dummySender) OnPush(id ParamId, delta float64, emit func(WorkerToServer[float64]), workerPartition PartitionIndex) {
	emit(WorkerToServer[float64]{WorkerPartition: workerPartition, Kind: KindPush, ParamID: id, Delta: delta})
}

type DefaultPSReceiverAdapter struct{}

func (DefaultPSReceiverAdapter) OnWorkerMsg(
	msg WorkerToServer[float64],
	onPull func(id ParamId, workerPartition PartitionIndex),
	onPush func(id ParamId, delta float64, workerPartition PartitionIndex),
) {
	switch msg.Kind {
	case KindPull:
		onPull(msg.ParamID, msg.WorkerPartition)
	case KindPush:
		onPush(msg.ParamID, msg.Delta, msg.WorkerPartition)
	}
}

type dummyPSSender struct{}

func (dummyPSSender) OnPullAnswer(id ParamId, value float64, workerPartition PartitionIndex, emit func(ServerToWorker[float64])) {
	emit(ServerToWorker[float64]{WorkerPartition: workerPartition, ParamID: id, Value: value})
}

type dummyWorkerReceiver struct{}

func (dummyWorkerReceiver) OnPullAnswerRecv(msg ServerToWorker[float64], onAnswer func(id ParamId, value float64, eom bool)) {
	onAnswer(msg.ParamID, msg.Value, msg.EOM)
}

func TestRunLoadingEngineZeroRecordsIsIncomplete(t *testing.T) {
	const W, S = 1, 1

	modelIn := make(chan ModelRecord[float64])
	close(modelIn)
	training := make(chan float64)
	close(training)

	cfg := Config{WorkerParallelism: W, ServerParallelism: S, IterationWaitTime: 20 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	worker := newRecordingWorker()
	psLogic := NewDefaultLogic[float64](func(ParamId) float64 { return 0 }, func(old, delta float64) float64 { return old + delta })

	_, errCh := RunLoadingEngine[float64, float64, float64, ParamOutput[float64]](
		ctx, cfg,
		[]<-chan float64{training},
		[]<-chan ModelRecord[float64]{modelIn},
		nil, false,
		[]WorkerLogic[float64, float64, float64, float64]{worker},
		[]ParameterServerLogic[float64, float64, ParamOutput[float64]]{psLogic},
		dummyW2S{}, dummyS2W{},
		dummySender{}, DefaultPSReceiverAdapter{}, dummyPSSender{}, dummyWorkerReceiver{},
	)

	err := <-errCh
	assert.Error(t, err)
	assert.IsType(t, ErrModelLoadIncomplete{}, err)
}
