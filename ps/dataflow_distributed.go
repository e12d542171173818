package ps

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/latticeflow/psflow/connection"
)

// Ack is the empty reply every distributed Deliver call returns; net/rpc
// requires a reply argument even when the call reports nothing back.
type Ack struct{}

// workerInboundRPC exposes one worker partition's pull-answer feedback
// queue as an RPC service: a server partition process calls Deliver in
// place of writing to a local channel, the distributed-transport
// realization of RunEngine's workerFeedback channel.
type workerInboundRPC[PullP any] struct {
	inbound chan ServerToWorker[PullP]
}

func (r *workerInboundRPC[PullP]) Deliver(msg *ServerToWorker[PullP], ack *Ack) error {
	r.inbound <- *msg
	return nil
}

// serverInboundRPC is the server-partition-side counterpart: a worker
// partition process calls Deliver to hand this server partition a pull
// or push, the distributed-transport realization of RunEngine's
// serverInbound channel.
type serverInboundRPC[PushP any] struct {
	inbound chan WorkerToServer[PushP]
}

func (r *serverInboundRPC[PushP]) Deliver(msg *WorkerToServer[PushP], ack *Ack) error {
	r.inbound <- *msg
	return nil
}

// serveRPC starts an HTTP-RPC listener exposing svc under the service
// name "Deliver", matching connection.Conn.Connect's rpc.DialHTTP dial
// side, and returns once it is accepting connections.
func serveRPC(addr string, svc any) (net.Listener, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Deliver", svc); err != nil {
		return nil, fmt.Errorf("ps: register rpc service at %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ps: listen %s: %w", addr, err)
	}
	go http.Serve(lis, mux)
	return lis, nil
}

// distributedWorkerSender computes the owning server partition locally
// (the same w2s.Partition call RunEngine's router goroutine makes) and
// delivers the message directly over RPC instead of a shared channel.
type distributedWorkerSender[PushP any] struct {
	w2s        WorkerToServerPartitioner
	conns      []*connection.Conn
	numServers int
	logger     *log.Entry
}

func (d *distributedWorkerSender[PushP]) deliver(msg WorkerToServer[PushP]) {
	dest := d.w2s.Partition(msg.ParamID, d.numServers)
	var ack Ack
	if err := d.conns[dest].Call("Deliver.Deliver", &msg, &ack); err != nil {
		d.logger.WithError(err).Error("distributed deliver to server partition failed")
	}
}

func (d *distributedWorkerSender[PushP]) OnPull(id ParamId, emit func(WorkerToServer[PushP]), workerPartition PartitionIndex) {
	msg := WorkerToServer[PushP]{WorkerPartition: workerPartition, Kind: KindPull, ParamID: id}
	d.deliver(msg)
	emit(msg)
}

func (d *distributedWorkerSender[PushP]) OnPush(id ParamId, delta PushP, emit func(WorkerToServer[PushP]), workerPartition PartitionIndex) {
	msg := WorkerToServer[PushP]{WorkerPartition: workerPartition, Kind: KindPush, ParamID: id, Delta: delta}
	d.deliver(msg)
	emit(msg)
}

// distributedPSSender delivers a pull answer directly to the owning
// worker partition's RPC endpoint, addressed by the WorkerPartition tag
// exactly as ps/partition.Identity routes it in-process.
type distributedPSSender[PullP any] struct {
	conns  []*connection.Conn
	logger *log.Entry
}

func (d *distributedPSSender[PullP]) OnPullAnswer(id ParamId, value PullP, workerPartition PartitionIndex, emit func(ServerToWorker[PullP])) {
	msg := ServerToWorker[PullP]{WorkerPartition: workerPartition, ParamID: id, Value: value}
	var ack Ack
	if err := d.conns[workerPartition].Call("Deliver.Deliver", &msg, &ack); err != nil {
		d.logger.WithError(err).Error("distributed deliver to worker partition failed")
	}
	emit(msg)
}

func dialAll(addrs []string) ([]*connection.Conn, error) {
	conns := make([]*connection.Conn, len(addrs))
	for i, addr := range addrs {
		conns[i] = connection.New()
		if err := conns[i].Connect(addr); err != nil {
			return nil, fmt.Errorf("ps: dial %s: %w", addr, err)
		}
	}
	return conns, nil
}

func closeAll(conns []*connection.Conn) {
	for _, c := range conns {
		_ = c.Close()
	}
}

// RunDistributedWorker runs exactly one worker partition as a standalone
// process (cmd/worker): it serves pull-answer feedback over RPC at
// listenAddr and delivers pulls/pushes directly to the owning server
// partition's RPC endpoint, computed locally via w2s. This is the
// TransportDistributed worker-tier realization of the same partitioning
// and routing invariants RunEngine enforces
// in-process (spec §4.4); only the channel is swapped for an RPC call.
func RunDistributedWorker[PullP, PushP, In, Out1 any](
	ctx context.Context,
	cfg Config,
	idx PartitionIndex,
	listenAddr string,
	serverAddrs []string,
	trainingIn <-chan In,
	logic WorkerLogic[PullP, PushP, In, Out1],
	w2s WorkerToServerPartitioner,
	workerReceiver WorkerReceiver[PullP],
) (<-chan Out1, <-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	base := cfg.logger().WithFields(log.Fields{"tier": "worker", "partition": int(idx)})

	inboundRPC := &workerInboundRPC[PullP]{inbound: make(chan ServerToWorker[PullP], engineChannelSize)}
	lis, err := serveRPC(listenAddr, inboundRPC)
	if err != nil {
		return nil, nil, err
	}

	conns, err := dialAll(serverAddrs)
	if err != nil {
		lis.Close()
		return nil, nil, err
	}

	sender := &distributedWorkerSender[PushP]{w2s: w2s, conns: conns, numServers: len(serverAddrs), logger: base}
	idle := newIdleMonitor(cfg.IterationWaitTime)
	out := make(chan Out1, engineChannelSize)
	toServerSink := make(chan WorkerToServer[PushP], engineChannelSize)

	w := &workerRuntime[PullP, PushP, In, Out1]{
		idx: idx, logic: logic, sender: sender, receiver: workerReceiver,
		trainingIn: trainingIn, feedbackIn: inboundRPC.inbound,
		toServer: toServerSink,
		output:   out, idle: idle, logger: base,
	}

	ctx, cancel := context.WithCancel(ctx)

	// toServerSink is drained and discarded: distributedWorkerSender
	// already performed the real network delivery inside OnPull/OnPush;
	// the emit call only keeps the idle monitor's in-flight count honest.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-toServerSink:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go w.run(ctx, cfg, &wg)

	done := make(chan struct{})
	go idle.watch(done, cancel)

	errCh := make(chan error, 1)
	go func() {
		wg.Wait()
		close(done)
		lis.Close()
		closeAll(conns)
		close(out)
		close(errCh)
	}()

	return out, errCh, nil
}

// RunDistributedServer runs exactly one server partition as a standalone
// process (cmd/server): it serves pulls/pushes over RPC at listenAddr
// and delivers pull answers directly to the owning worker partition's
// RPC endpoint.
func RunDistributedServer[PullP, PushP, Out2 any](
	ctx context.Context,
	cfg Config,
	idx PartitionIndex,
	listenAddr string,
	workerAddrs []string,
	logic ParameterServerLogic[PullP, PushP, Out2],
	receiver PSReceiver[PushP],
) (<-chan Out2, <-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	base := cfg.logger().WithFields(log.Fields{"tier": "server", "partition": int(idx)})

	inboundRPC := &serverInboundRPC[PushP]{inbound: make(chan WorkerToServer[PushP], engineChannelSize)}
	lis, err := serveRPC(listenAddr, inboundRPC)
	if err != nil {
		return nil, nil, err
	}

	conns, err := dialAll(workerAddrs)
	if err != nil {
		lis.Close()
		return nil, nil, err
	}

	sender := &distributedPSSender[PullP]{conns: conns, logger: base}
	idle := newIdleMonitor(cfg.IterationWaitTime)
	out := make(chan Out2, engineChannelSize)
	toWorkerSink := make(chan ServerToWorker[PullP], engineChannelSize)

	s := &serverRuntime[PullP, PushP, Out2]{
		idx: idx, logic: logic, sender: sender, receiver: receiver,
		workerIn: inboundRPC.inbound,
		toWorker: toWorkerSink,
		output:   out, idle: idle, logger: base,
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-toWorkerSink:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go s.run(ctx, cfg, &wg)

	done := make(chan struct{})
	go idle.watch(done, cancel)

	errCh := make(chan error, 1)
	go func() {
		wg.Wait()
		close(done)
		lis.Close()
		closeAll(conns)
		close(out)
		close(errCh)
	}()

	return out, errCh, nil
}
