// Command server runs a single server partition of a distributed
// parameter-server job as its own process, the server-tier counterpart
// of cmd/worker.
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
)

// serverBasePort mirrors cmd/worker's workerBasePort for the server
// tier's default per-index listen address.
const serverBasePort = 30000

func main() {
	index := flag.Int("index", -1, "index of this server partition, must be >= 0")
	listenAddr := flag.String("listen-addr", "", "address this server partition's RPC service listens on; defaults to a fixed per-index port")
	etcdEndpoint := flag.String("etcd-endpoint", "http://127.0.0.1:2379",
		"comma separated etcd endpoints used for partition discovery")
	etcdTimeout := flag.Duration("etcd-timeout", 5*time.Second, "timeout for etcd calls")
	numWorkers := flag.Int("num-workers", 1, "total worker partition count in the job")
	numServers := flag.Int("num-servers", 1, "total server partition count in the job")
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
		addr = ":" + strconv.Itoa(serverBasePort+*index)
	}

	registry := discovery.NewRegistry(*etcdEndpoint, *etcdTimeout)
	candy.Must(registry.DeclareDesired(discovery.TierWorker, *numWorkers))
	candy.Must(registry.DeclareDesired(discovery.TierServer, *numServers))

	ctx := context.Background()
	candy.Must(registry.Register(ctx, discovery.TierServer, *index, addr))

	lister := discovery.NewLister(registry)
	workerAddrs := lister.List(discovery.TierWorker, lister.Desired(discovery.TierWorker))

	cfg := ps.Config{WorkerParallelism: *numWorkers, ServerParallelism: *numServers, IterationWaitTime: *iterationWait}

	logic := ps.NewDefaultLogic[float64](
		func(ps.ParamId) float64 { return 0 },
		func(old, delta float64) float64 { return old + delta },
	)

	out, errCh, err := ps.RunDistributedServer[float64, float64, ps.ParamOutput[float64]](
		ctx, cfg, ps.PartitionIndex(*index), addr, workerAddrs,
		logic, codec.DefaultPSReceiver[float64]{},
	)
	candy.Must(err)

	for r := range out {
		fmt.Printf("server %d final: param=%d value=%.2f\n", *index, r.ID, r.Value)
	}
	if err := <-errCh; err != nil {
		log.WithError(err).Fatal("server partition failed")
	}
}
