package ps

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// loadingWorkerRuntime drives one worker partition through the
// bootstrap phase of spec §4.5 and then through a steady-state loop
// that is a copy of workerRuntime.run's: while its model source is
// open, model records are forwarded as pushes (or, for a worker-side
// copy under double load, applied directly through ModelUpdater) and
// training records are buffered; on model-source close it fans out one
// EOM marker to every server partition, replays the buffered training
// records through the normal OnRecv path, and only then enters the
// steady-state select loop. It wraps a workerRuntime and uses its
// logic, codecs, channels and client facade.
type loadingWorkerRuntime[P, In, Out1 any] struct {
	inner *workerRuntime[P, P, In, Out1]

	modelIn       <-chan ModelRecord[P]
	doubleModelIn <-chan DoubleModelRecord[P]
	numServers    int
}

func (w *loadingWorkerRuntime[P, In, Out1]) run(ctx context.Context, cfg Config, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	inner := w.inner
	inner.ctx = ctx

	if err := inner.logic.Open(cfg, RuntimeContext{PartitionIndex: inner.idx, Logger: inner.logger}); err != nil {
		inner.logger.WithError(err).Error("worker logic open failed")
		return
	}
	defer func() {
		if err := inner.logic.Close(); err != nil {
			inner.logger.WithError(err).Error("worker logic close failed")
		}
	}()

	var buffered []In
	received := 0

	emitPush := func(id ParamId, value P) {
		inner.idle.send()
		select {
		case inner.toServer <- WorkerToServer[P]{WorkerPartition: inner.idx, Kind: KindPush, ParamID: id, Delta: value}:
		case <-ctx.Done():
		}
	}

loadLoop:
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-inner.trainingIn:
			if !ok {
				inner.trainingIn = nil
				continue
			}
			buffered = append(buffered, rec)
		case rec, ok := <-w.modelIn:
			if !ok {
				break loadLoop
			}
			received++
			emitPush(rec.ParamID, rec.Value)
		case rec, ok := <-w.doubleModelIn:
			if !ok {
				break loadLoop
			}
			received++
			if rec.IsWorkerCopy {
				updater, isUpdater := inner.logic.(ModelUpdater[P])
				if !isUpdater {
					inner.logger.Error("worker logic does not implement ModelUpdater but received a worker-side model copy")
					continue
				}
				if err := updater.UpdateModel(rec.Record.ParamID, rec.Record.Value); err != nil {
					inner.logger.WithError(err).Error("UpdateModel failed")
				}
			} else {
				emitPush(rec.Record.ParamID, rec.Record.Value)
			}
		case _, ok := <-inner.feedbackIn:
			// A bulk model load can push far more keepalive
			// pull-answers (see loadingServerRuntime.keepalive) than
			// fit in workerFeedback's buffer before the barrier
			// closes. They carry no payload worth acting on at this
			// stage, but they must still be drained: left unread they
			// fill workerFeedback, which backs up s2wRaw, which backs
			// up the server's push handler, which stalls the entire
			// pipeline with inFlight stuck above zero forever.
			if !ok {
				return
			}
			inner.idle.recv()
		}
	}

	if received == 0 {
		err := ErrModelLoadIncomplete{WorkerPartition: inner.idx}
		inner.logger.Error(err.Error())
		select {
		case errCh <- err:
		default:
		}
		return
	}

	// Fan out EOM to every server partition, closing the barrier on
	// this worker partition's side (spec §4.5 step 3). Each EOM is sent
	// down inner.toServer, the same w2sRaw channel every model push
	// above went through, rather than straight into the destination
	// server's inbound channel: pushes and EOM must arrive at a server
	// partition in the order this worker partition sent them, and that
	// FIFO guarantee only holds if they travel through the same queue.
	// The destination server index rides in ParamID, which kindEOM
	// otherwise has no use for; the w2sRaw router recognizes kindEOM and
	// routes on that index directly instead of asking
	// WorkerToServerPartitioner for one (EOM is a broadcast, not a
	// message keyed by a real ParamId).
	for s := 0; s < w.numServers; s++ {
		inner.idle.send()
		eom := WorkerToServer[P]{WorkerPartition: inner.idx, Kind: kindEOM, ParamID: ParamId(s)}
		select {
		case inner.toServer <- eom:
		case <-ctx.Done():
			return
		}
	}

	for _, rec := range buffered {
		if err := inner.logic.OnRecv(rec, inner.client()); err != nil {
			inner.logger.WithError(err).Error("worker OnRecv failed (flushing buffered record)")
		}
	}

	// Steady-state loop, a copy of workerRuntime.run's.
	trainingIn := inner.trainingIn
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-trainingIn:
			if !ok {
				trainingIn = nil
				continue
			}
			inner.idle.touch()
			if err := inner.logic.OnRecv(rec, inner.client()); err != nil {
				inner.logger.WithError(err).Error("worker OnRecv failed")
			}
		case msg, ok := <-inner.feedbackIn:
			if !ok {
				return
			}
			inner.idle.recv()
			if msg.EOM {
				continue
			}
			inner.receiver.OnPullAnswerRecv(msg, func(id ParamId, value P, eom bool) {
				if eom {
					inner.logger.WithError(ErrUnexpectedEOM{ParamID: id}).Error("protocol confusion")
					return
				}
				if err := inner.logic.OnPullRecv(id, value, inner.client()); err != nil {
					inner.logger.WithError(err).Error("worker OnPullRecv failed")
				}
			})
		}
	}
}

// loadingServerRuntime drives one server partition through the
// bootstrap barrier of spec §4.5: it accepts pushes at all times but
// defers every pull until every worker partition has reported its EOM,
// then replays the deferred pulls in arrival order through the real
// logic. When doubleLoad is set, every push received before the barrier
// closes also triggers a synthetic keepalive pull-answer to a
// deterministically chosen worker partition, keeping the iteration loop
// from looking idle during bulk load. Before and after the barrier it
// dispatches inbound messages on their Kind field itself; the
// configured PSReceiver is not called.
type loadingServerRuntime[P, Out2 any] struct {
	inner *serverRuntime[P, P, Out2]

	numWorkers int
	doubleLoad bool
}

type pendingPull struct {
	id              ParamId
	workerPartition PartitionIndex
}

func (s *loadingServerRuntime[P, Out2]) run(ctx context.Context, cfg Config, wg *sync.WaitGroup) {
	defer wg.Done()
	inner := s.inner
	inner.ctx = ctx

	if err := inner.logic.Open(cfg, RuntimeContext{PartitionIndex: inner.idx, Logger: inner.logger}); err != nil {
		inner.logger.WithError(err).Error("ps logic open failed")
		return
	}
	srv := inner.server()
	defer func() {
		if err := inner.logic.Close(srv); err != nil {
			inner.logger.WithError(err).Error("ps logic close failed")
		}
	}()

	seenEOM := make(map[PartitionIndex]bool, s.numWorkers)
	remaining := s.numWorkers
	var pending []pendingPull
	loading := true

	keepalive := func(id ParamId) {
		if !s.doubleLoad {
			return
		}
		target := PartitionIndex(((int(id) % s.numWorkers) + s.numWorkers) % s.numWorkers)
		inner.idle.send()
		select {
		case inner.toWorker <- ServerToWorker[P]{WorkerPartition: target, EOM: true}:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inner.workerIn:
			if !ok {
				return
			}
			inner.idle.recv()

			switch {
			case msg.Kind == kindEOM:
				if !seenEOM[msg.WorkerPartition] {
					seenEOM[msg.WorkerPartition] = true
					remaining--
				}
				if remaining == 0 && loading {
					loading = false
					toReplay := pending
					pending = nil
					for _, p := range toReplay {
						if err := inner.logic.OnPullRecv(p.id, p.workerPartition, srv); err != nil {
							inner.logger.WithError(err).Error("ps OnPullRecv failed (replaying deferred pull)")
						}
					}
				}
			case msg.Kind == KindPull:
				if loading {
					pending = append(pending, pendingPull{id: msg.ParamID, workerPartition: msg.WorkerPartition})
					continue
				}
				if err := inner.logic.OnPullRecv(msg.ParamID, msg.WorkerPartition, srv); err != nil {
					inner.logger.WithError(err).Error("ps OnPullRecv failed")
				}
			case msg.Kind == KindPush:
				if err := inner.logic.OnPushRecv(msg.ParamID, msg.Delta, srv); err != nil {
					inner.logger.WithError(err).Error("ps OnPushRecv failed")
				}
				if loading {
					keepalive(msg.ParamID)
				}
			}
		}
	}
}

// RunLoadingEngine wires the bootstrap-aware worker/server runtimes
// together. Exactly one of modelIn/doubleModelIn is non-nil per call;
// the other is passed as a nil slice.
func RunLoadingEngine[P, In, Out1, Out2 any](
	ctx context.Context,
	cfg Config,
	trainingIn []<-chan In,
	modelIn []<-chan ModelRecord[P],
	doubleModelIn []<-chan DoubleModelRecord[P],
	doubleLoad bool,
	workerLogic []WorkerLogic[P, P, In, Out1],
	psLogic []ParameterServerLogic[P, P, Out2],
	w2s WorkerToServerPartitioner,
	s2w ServerToWorkerPartitioner,
	sender WorkerSender[P],
	receiver PSReceiver[P],
	psSender PSSender[P],
	workerReceiver WorkerReceiver[P],
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

	workerFeedback := make([]chan ServerToWorker[P], W)
	serverInbound := make([]chan WorkerToServer[P], S)
	for i := range workerFeedback {
		workerFeedback[i] = make(chan ServerToWorker[P], engineChannelSize)
	}
	for i := range serverInbound {
		serverInbound[i] = make(chan WorkerToServer[P], engineChannelSize)
	}

	workerOut := make(chan Out1, engineChannelSize)
	serverOut := make(chan Out2, engineChannelSize)
	w2sRaw := make(chan WorkerToServer[P], engineChannelSize)
	s2wRaw := make(chan ServerToWorker[P], engineChannelSize)

	var routerWg sync.WaitGroup
	var workerWg sync.WaitGroup
	var serverWg sync.WaitGroup

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
				// kindEOM travels through this same router (the
				// worker sends it down w2sRaw alongside its model
				// pushes, see loadingWorkerRuntime) so it cannot
				// overtake pushes still queued ahead of it; routing
				// it by ParamId instead of WorkerToServerPartitioner
				// is what makes this a broadcast rather than a
				// message keyed by a real parameter id, since kindEOM
				// repurposes ParamID to carry the destination server
				// index directly.
				var dest PartitionIndex
				if msg.Kind == kindEOM {
					dest = PartitionIndex(msg.ParamID)
				} else {
					dest = w2s.Partition(msg.ParamID, S)
				}
				select {
				case serverInbound[dest] <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

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
		inner := &workerRuntime[P, P, In, Out1]{
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
		lw := &loadingWorkerRuntime[P, In, Out1]{inner: inner, numServers: S}
		if modelIn != nil {
			lw.modelIn = modelIn[i]
		}
		if doubleModelIn != nil {
			lw.doubleModelIn = doubleModelIn[i]
		}
		workerWg.Add(1)
		go lw.run(ctx, cfg, &workerWg, errCh)
	}

	for i := 0; i < S; i++ {
		inner := &serverRuntime[P, P, Out2]{
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
		ls := &loadingServerRuntime[P, Out2]{inner: inner, numWorkers: W, doubleLoad: doubleLoad}
		serverWg.Add(1)
		go ls.run(ctx, cfg, &serverWg)
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
