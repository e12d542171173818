package ps

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// workerRuntime drives one worker partition instance of the steady
// state (non-bootstrap) dataflow: it reads training records from its
// primary input and pull answers from its feedback input, and calls
// into WorkerLogic sequentially — never concurrently — exactly as
// spec §5 requires.
type workerRuntime[PullP, PushP, In, Out1 any] struct {
	idx      PartitionIndex
	logic    WorkerLogic[PullP, PushP, In, Out1]
	sender   WorkerSender[PushP]
	receiver WorkerReceiver[PullP]

	trainingIn <-chan In
	feedbackIn chan ServerToWorker[PullP]
	toServer   chan<- WorkerToServer[PushP]
	output     chan<- Out1

	idle   *idleMonitor
	logger *log.Entry
	ctx    context.Context
}

func (w *workerRuntime[PullP, PushP, In, Out1]) client() *ParameterServerClient[PullP, PushP, Out1] {
	return NewParameterServerClient[PullP, PushP, Out1](w.idx, w.sender, func(msg WorkerToServer[PushP]) {
		w.idle.send()
		select {
		case w.toServer <- msg:
		case <-w.ctx.Done():
		}
	}, func(o Out1) {
		// Never abort on w.ctx.Done(): this also fires for the final
		// snapshot WorkerLogic.Close emits after the loop below has
		// already returned on an idle-triggered cancel, and ctx is
		// done by then, so a select against it would drop that value
		// nondeterministically instead of delivering it. The output
		// forwarding goroutine in RunEngine/RunLoadingEngine always
		// drains workerOut to completion, so this send is safe to
		// block on.
		w.output <- o
	})
}

func (w *workerRuntime[PullP, PushP, In, Out1]) run(ctx context.Context, cfg Config, wg *sync.WaitGroup) {
	defer wg.Done()
	w.ctx = ctx

	if err := w.logic.Open(cfg, RuntimeContext{PartitionIndex: w.idx, Logger: w.logger}); err != nil {
		w.logger.WithError(err).Error("worker logic open failed")
		return
	}
	defer func() {
		if err := w.logic.Close(); err != nil {
			w.logger.WithError(err).Error("worker logic close failed")
		}
	}()

	trainingIn := w.trainingIn
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-trainingIn:
			if !ok {
				trainingIn = nil
				continue
			}
			w.idle.touch()
			if err := w.logic.OnRecv(rec, w.client()); err != nil {
				w.logger.WithError(err).Error("worker OnRecv failed")
			}
		case msg, ok := <-w.feedbackIn:
			if !ok {
				return
			}
			w.idle.recv()
			if msg.EOM {
				// A synthetic double-load keepalive answer reaching
				// the steady-state loop is stray (it should only
				// occur during the load phase); drop it, matching the
				// "ignored at the semantic level" directive.
				continue
			}
			w.receiver.OnPullAnswerRecv(msg, func(id ParamId, value PullP, eom bool) {
				if eom {
					w.logger.WithError(ErrUnexpectedEOM{ParamID: id}).Error("protocol confusion")
					return
				}
				if err := w.logic.OnPullRecv(id, value, w.client()); err != nil {
					w.logger.WithError(err).Error("worker OnPullRecv failed")
				}
			})
		}
	}
}

// serverRuntime drives one server partition instance of the steady
// state dataflow.
type serverRuntime[PullP, PushP, Out2 any] struct {
	idx      PartitionIndex
	logic    ParameterServerLogic[PullP, PushP, Out2]
	sender   PSSender[PullP]
	receiver PSReceiver[PushP]

	workerIn  <-chan WorkerToServer[PushP]
	toWorker  chan<- ServerToWorker[PullP]
	output    chan<- Out2

	idle   *idleMonitor
	logger *log.Entry
	ctx    context.Context
}

func (s *serverRuntime[PullP, PushP, Out2]) server() *ParameterServer[PullP, Out2] {
	return NewParameterServer[PullP, Out2](s.sender, func(msg ServerToWorker[PullP]) {
		s.idle.send()
		select {
		case s.toWorker <- msg:
		case <-s.ctx.Done():
		}
	}, func(o Out2) {
		// See workerRuntime.client's identical comment: this must not
		// abort on s.ctx.Done(), since the final output emitted from
		// ParameterServerLogic.Close happens after ctx is already
		// cancelled on an idle shutdown.
		s.output <- o
	})
}

func (s *serverRuntime[PullP, PushP, Out2]) run(ctx context.Context, cfg Config, wg *sync.WaitGroup) {
	defer wg.Done()
	s.ctx = ctx

	if err := s.logic.Open(cfg, RuntimeContext{PartitionIndex: s.idx, Logger: s.logger}); err != nil {
		s.logger.WithError(err).Error("ps logic open failed")
		return
	}
	srv := s.server()
	defer func() {
		if err := s.logic.Close(srv); err != nil {
			s.logger.WithError(err).Error("ps logic close failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.workerIn:
			if !ok {
				return
			}
			s.idle.recv()
			s.receiver.OnWorkerMsg(msg,
				func(id ParamId, workerPartition PartitionIndex) {
					if err := s.logic.OnPullRecv(id, workerPartition, srv); err != nil {
						s.logger.WithError(err).Error("ps OnPullRecv failed")
					}
				},
				func(id ParamId, delta PushP, workerPartition PartitionIndex) {
					if err := s.logic.OnPushRecv(id, delta, srv); err != nil {
						s.logger.WithError(err).Error("ps OnPushRecv failed")
					}
				},
			)
		}
	}
}

// engineChannelSize bounds the fan-in/fan-out channels connecting
// partitions; backpressure beyond this is the producer's problem, same
// as spec §5 states for the host engine generally.
const engineChannelSize = 64

// RunEngine wires W worker partitions and S server partitions into the
// cyclic dataflow spec §4.4 describes and runs it to completion,
// either via external context cancellation or the idle timer. It
// returns the merged output stream and a channel that receives at most
// one error if a configuration or routing invariant fails.
//
// RunEngine is the low-level entrypoint; the root package's Transform,
// TransformWithPS, and TransformFull wrap it with default partitioners
// and codecs.
func RunEngine[PullP, PushP, In, Out1, Out2 any](
	ctx context.Context,
	cfg Config,
	trainingIn []<-chan In,
	workerLogic []WorkerLogic[PullP, PushP, In, Out1],
	psLogic []ParameterServerLogic[PullP, PushP, Out2],
	w2s WorkerToServerPartitioner,
	s2w ServerToWorkerPartitioner,
	sender WorkerSender[PushP],
	receiver PSReceiver[PushP],
	psSender PSSender[PullP],
	workerReceiver WorkerReceiver[PullP],
) (<-chan Either[Out1, Out2], <-chan error) {
	errCh := make(chan error, 1)
	if err := cfg.Validate(); err != nil {
		errCh <- err
		close(errCh)
		out := make(chan Either[Out1, Out2])
		close(out)
		return out, errCh
	}

	W := cfg.WorkerParallelism
	S := cfg.ServerParallelism
	base := cfg.logger()

	ctx, cancel := context.WithCancel(ctx)

	idle := newIdleMonitor(cfg.IterationWaitTime)

	workerFeedback := make([]chan ServerToWorker[PullP], W)
	serverInbound := make([]chan WorkerToServer[PushP], S)
	for i := range workerFeedback {
		workerFeedback[i] = make(chan ServerToWorker[PullP], engineChannelSize)
	}
	for i := range serverInbound {
		serverInbound[i] = make(chan WorkerToServer[PushP], engineChannelSize)
	}

	workerOut := make(chan Out1, engineChannelSize)
	serverOut := make(chan Out2, engineChannelSize)
	w2sRaw := make(chan WorkerToServer[PushP], engineChannelSize)
	s2wRaw := make(chan ServerToWorker[PullP], engineChannelSize)

	var routerWg sync.WaitGroup
	var workerWg sync.WaitGroup
	var serverWg sync.WaitGroup

	// Worker-to-server router: partitions each message to its owning
	// server partition (spec invariant 1, property P1).
	routerWg.Add(1)
	go func() {
		defer routerWg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-w2sRaw:
				if !ok {
					return
				}
				dest := w2s.Partition(msg.ParamID, S)
				select {
				case serverInbound[dest] <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Server-to-worker router: delivers each pull answer to the worker
	// partition that issued it (spec invariant 2, property P2).
	routerWg.Add(1)
	go func() {
		defer routerWg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-s2wRaw:
				if !ok {
					return
				}
				dest, err := s2w.Partition(msg.WorkerPartition, W)
				if err != nil {
					base.WithError(err).Error("server-to-worker routing invariant violated, aborting job")
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
				select {
				case workerFeedback[dest] <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < W; i++ {
		w := &workerRuntime[PullP, PushP, In, Out1]{
			idx:        PartitionIndex(i),
			logic:      workerLogic[i],
			sender:     sender,
			receiver:   workerReceiver,
			trainingIn: trainingIn[i],
			feedbackIn: workerFeedback[i],
			toServer:   w2sRaw,
			output:     workerOut,
			idle:       idle,
			logger:     base.WithFields(log.Fields{"tier": "worker", "partition": i}),
		}
		workerWg.Add(1)
		go w.run(ctx, cfg, &workerWg)
	}

	for i := 0; i < S; i++ {
		s := &serverRuntime[PullP, PushP, Out2]{
			idx:      PartitionIndex(i),
			logic:    psLogic[i],
			sender:   psSender,
			receiver: receiver,
			workerIn: serverInbound[i],
			toWorker: s2wRaw,
			output:   serverOut,
			idle:     idle,
			logger:   base.WithFields(log.Fields{"tier": "server", "partition": i}),
		}
		serverWg.Add(1)
		go s.run(ctx, cfg, &serverWg)
	}

	// workerOut/serverOut close only once every producer for that tier
	// has returned (and, via its deferred Close, finished emitting into
	// it), so the forwarding goroutines below can drain them to
	// completion with a plain range instead of racing ctx.Done().
	go func() {
		workerWg.Wait()
		close(workerOut)
	}()
	go func() {
		serverWg.Wait()
		close(serverOut)
	}()

	done := make(chan struct{})
	go idle.watch(done, cancel)

	out := make(chan Either[Out1, Out2])
	var outWg sync.WaitGroup
	outWg.Add(2)
	go func() {
		defer outWg.Done()
		for o := range workerOut {
			out <- LeftOf[Out1, Out2](o)
		}
	}()
	go func() {
		defer outWg.Done()
		for o := range serverOut {
			out <- RightOf[Out1, Out2](o)
		}
	}()

	go func() {
		workerWg.Wait()
		serverWg.Wait()
		routerWg.Wait()
		close(done)
		outWg.Wait()
		close(out)
		close(errCh)
	}()

	return out, errCh
}
