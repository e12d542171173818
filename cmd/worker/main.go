// Command worker runs a single worker partition of a distributed
// parameter-server job as its own process: it registers itself in etcd
// via package discovery, looks up the server partitions the same way,
// and drives its partition of the fabric over the net/rpc distributed
// transport (ps.RunDistributedWorker).
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/namsral/flag"
	"github.com/topicai/candy"

	log "github.com/sirupsen/logrus"

	"github.com/latticeflow/psflow/codec"
	"github.com/latticeflow/psflow/discovery"
	"github.com/latticeflow/psflow/ps"
	"github.com/latticeflow/psflow/ps/partition"
)

// workerBasePort is the first port a worker partition binds to absent
// an explicit -listen-addr; partition i binds workerBasePort+i, a fixed
// scheme simple enough for a single-host demo deployment.
const workerBasePort = 20000

type TrainingRecord struct {
	ParamID ps.ParamId
	Delta   float64
}

type Result struct {
	ParamID ps.ParamId
	Value   float64
}

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

func main() {
	index := flag.Int("index", -1, "index of this worker partition, must be >= 0")
	listenAddr := flag.String("listen-addr", "", "address this worker partition's RPC service listens on; defaults to a fixed per-index port")
	etcdEndpoint := flag.String("etcd-endpoint", "http://127.0.0.1:2379",
		"comma separated etcd endpoints used for partition discovery")
	etcdTimeout := flag.Duration("etcd-timeout", 5*time.Second, "timeout for etcd calls")
	numWorkers := flag.Int("num-workers", 1, "total worker partition count in the job")
	numServers := flag.Int("num-servers", 1, "total server partition count in the job")
	recordsPerWorker := flag.Int("records-per-worker", 20, "synthetic training records to process")
	iterationWait := flag.Duration("iteration-wait", 2*time.Second,
		"how long the pipeline must sit idle before the job is considered done; 0 means never terminate")
	logLevel := flag.String("log-level", "info", "log level, possible values: debug, info, warning, error, fatal, panic")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	candy.Must(err)
	log.SetLevel(level)

	if *index < 0 {
		log.Fatal("-index must be set to a value >= 0")
	}
	addr := *listenAddr
	if addr == "" {
		addr = ":" + strconv.Itoa(workerBasePort+*index)
	}

	registry := discovery.NewRegistry(*etcdEndpoint, *etcdTimeout)
	candy.Must(registry.DeclareDesired(discovery.TierWorker, *numWorkers))
	candy.Must(registry.DeclareDesired(discovery.TierServer, *numServers))

	ctx := context.Background()
	candy.Must(registry.Register(ctx, discovery.TierWorker, *index, addr))

	lister := discovery.NewLister(registry)
	serverAddrs := lister.List(discovery.TierServer, lister.Desired(discovery.TierServer))

	trainingIn := make(chan TrainingRecord, *recordsPerWorker)
	for j := 0; j < *recordsPerWorker; j++ {
		trainingIn <- TrainingRecord{ParamID: ps.ParamId(j % 4), Delta: 1.0}
	}
	close(trainingIn)

	cfg := ps.Config{WorkerParallelism: *numWorkers, ServerParallelism: *numServers, IterationWaitTime: *iterationWait}

	out, errCh, err := ps.RunDistributedWorker[float64, float64, TrainingRecord, Result](
		ctx, cfg, ps.PartitionIndex(*index), addr, serverAddrs,
		trainingIn, &averagingWorker{}, partition.FNV1a{}, codec.DefaultWorkerReceiver[float64]{},
	)
	candy.Must(err)

	for r := range out {
		fmt.Printf("worker %d output: param=%d value=%.2f\n", *index, r.ParamID, r.Value)
	}
	if err := <-errCh; err != nil {
		log.WithError(err).Fatal("worker partition failed")
	}
}
