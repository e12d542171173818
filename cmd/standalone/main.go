// Command standalone runs a complete parameter-server job in a single
// process over the in-process transport, demonstrating Transform the
// way cmd/pserver and cmd/master demonstrate their own services: parse
// flags, build the job, run it to completion, log the result.
package main

import (
	"context"
	"time"

	"github.com/namsral/flag"
	"github.com/topicai/candy"

	log "github.com/sirupsen/logrus"

	psflow "github.com/latticeflow/psflow"
	"github.com/latticeflow/psflow/ps"
)

// TrainingRecord is a toy training record: an update for one parameter.
type TrainingRecord struct {
	ParamID ps.ParamId
	Delta   float64
}

// Result is the worker-tier output: the pulled value right after a
// push, so a caller watching the output stream sees the running total
// converge.
type Result struct {
	ParamID ps.ParamId
	Value   float64
}

// averagingWorker pushes every incoming record's delta then immediately
// pulls the same parameter back, emitting the post-update value.
type averagingWorker struct {
	logger *log.Entry
}

func (w *averagingWorker) Open(cfg ps.Config, ctx ps.RuntimeContext) error {
	w.logger = ctx.Logger
	return nil
}

func (w *averagingWorker) OnRecv(rec TrainingRecord, client *ps.ParameterServerClient[float64, float64, Result]) error {
	client.Push(rec.ParamID, rec.Delta)
	client.Pull(rec.ParamID)
	return nil
}

func (w *averagingWorker) OnPullRecv(id ps.ParamId, value float64, client *ps.ParameterServerClient[float64, float64, Result]) error {
	client.Output(Result{ParamID: id, Value: value})
	return nil
}

func (w *averagingWorker) Close() error { return nil }

func syntheticTrainingData(numWorkers, recordsPerWorker int) []<-chan TrainingRecord {
	out := make([]<-chan TrainingRecord, numWorkers)
	for i := 0; i < numWorkers; i++ {
		ch := make(chan TrainingRecord, recordsPerWorker)
		for j := 0; j < recordsPerWorker; j++ {
			ch <- TrainingRecord{ParamID: ps.ParamId(j % 4), Delta: 1.0}
		}
		close(ch)
		out[i] = ch
	}
	return out
}

func main() {
	numWorkers := flag.Int("workers", 2, "worker partition count")
	numServers := flag.Int("servers", 2, "server partition count")
	recordsPerWorker := flag.Int("records-per-worker", 20, "synthetic training records per worker partition")
	iterationWait := flag.Duration("iteration-wait", 200*time.Millisecond,
		"idle interval before the job is considered finished; 0 means never terminate")
	logLevel := flag.String("log-level", "info",
		"log level, possible values: debug, info, warning, error, fatal, panic")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	candy.Must(err)
	log.SetLevel(level)

	cfg := ps.Config{
		WorkerParallelism: *numWorkers,
		ServerParallelism: *numServers,
		IterationWaitTime: *iterationWait,
	}

	trainingData := syntheticTrainingData(*numWorkers, *recordsPerWorker)

	out, errCh := psflow.Transform[float64, TrainingRecord, Result](
		context.Background(),
		trainingData,
		func(ps.PartitionIndex) ps.WorkerLogic[float64, float64, TrainingRecord, Result] {
			return &averagingWorker{}
		},
		func(ps.ParamId) float64 { return 0 },
		func(old, delta float64) float64 { return old + delta },
		cfg,
	)

	count := 0
	for e := range out {
		if e.IsLeft {
			count++
			log.Debugf("worker output: param=%d value=%.2f", e.Left.ParamID, e.Left.Value)
		} else {
			log.Infof("final param=%d value=%.2f", e.Right.ID, e.Right.Value)
		}
	}
	if err := <-errCh; err != nil {
		log.WithError(err).Fatal("job failed")
	}
	log.Infof("job finished, %d worker outputs observed", count)
}
