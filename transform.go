// Package psflow composes the ps coordination fabric into the
// dataflow API spec §6 exposes to users: a handful of transform
// entrypoints differing in how much of the routing/codec/PS-logic
// machinery the caller wants to supply versus take as default.
package psflow

import (
	"context"

	"github.com/latticeflow/psflow/codec"
	"github.com/latticeflow/psflow/ps"
	"github.com/latticeflow/psflow/ps/partition"
)

func defaultW2S() ps.WorkerToServerPartitioner { return partition.FNV1a{} }
func defaultS2W() ps.ServerToWorkerPartitioner { return partition.Identity{} }

func buildWorkerLogic[PullP, PushP, In, Out1 any](n int, factory func(ps.PartitionIndex) ps.WorkerLogic[PullP, PushP, In, Out1]) []ps.WorkerLogic[PullP, PushP, In, Out1] {
	out := make([]ps.WorkerLogic[PullP, PushP, In, Out1], n)
	for i := range out {
		out[i] = factory(ps.PartitionIndex(i))
	}
	return out
}

func buildPSLogic[PullP, PushP, Out2 any](n int, factory func(ps.PartitionIndex) ps.ParameterServerLogic[PullP, PushP, Out2]) []ps.ParameterServerLogic[PullP, PushP, Out2] {
	out := make([]ps.ParameterServerLogic[PullP, PushP, Out2], n)
	for i := range out {
		out[i] = factory(ps.PartitionIndex(i))
	}
	return out
}

// Transform is the symmetric, default-PS entrypoint: training_data,
// worker_logic, param_init, param_update, W, S, iteration_wait of spec
// §6's first bullet. Each server partition gets its own *ps.DefaultLogic
// instance, so concurrent partitions never share the underlying map.
func Transform[P, In, Out1 any](
	ctx context.Context,
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[P, P, In, Out1],
	initFn func(ps.ParamId) P,
	updateFn func(old, delta P) P,
	cfg ps.Config,
) (<-chan ps.Either[Out1, ps.ParamOutput[P]], <-chan error) {
	psLogicFactory := func(ps.PartitionIndex) ps.ParameterServerLogic[P, P, ps.ParamOutput[P]] {
		return ps.NewDefaultLogic[P](initFn, updateFn)
	}
	return TransformWithPS[P, P, In, Out1, ps.ParamOutput[P]](ctx, trainingData, workerLogicFactory, psLogicFactory, cfg)
}

// TransformLoose is Transform's asymmetric counterpart: PullP and PushP
// differ, and the default PS logic enforces pull-before-push (spec §9,
// DESIGN.md Open Question 1) instead of treating a bare push as a seed.
func TransformLoose[PullP, PushP, In, Out1 any](
	ctx context.Context,
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[PullP, PushP, In, Out1],
	initFn func(ps.ParamId) PullP,
	updateFn func(old PullP, delta PushP) PullP,
	cfg ps.Config,
) (<-chan ps.Either[Out1, ps.ParamOutput[PullP]], <-chan error) {
	psLogicFactory := func(ps.PartitionIndex) ps.ParameterServerLogic[PullP, PushP, ps.ParamOutput[PullP]] {
		return ps.NewDefaultLooseLogic[PullP, PushP](initFn, updateFn)
	}
	return TransformWithPS[PullP, PushP, In, Out1, ps.ParamOutput[PullP]](ctx, trainingData, workerLogicFactory, psLogicFactory, cfg)
}

// TransformWithPS is spec §6's "symmetric, user PS" entrypoint and its
// asymmetric counterpart at once: Go's generics let PullP and PushP be
// supplied equal or distinct at the call site without two parallel
// functions. Routing uses the default FNV1a/Identity partitioners and
// the default in-process codec.
func TransformWithPS[PullP, PushP, In, Out1, Out2 any](
	ctx context.Context,
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[PullP, PushP, In, Out1],
	psLogicFactory func(ps.PartitionIndex) ps.ParameterServerLogic[PullP, PushP, Out2],
	cfg ps.Config,
) (<-chan ps.Either[Out1, Out2], <-chan error) {
	return TransformFull[PullP, PushP, In, Out1, Out2](
		ctx, trainingData, workerLogicFactory, psLogicFactory,
		defaultW2S(), defaultS2W(),
		codec.DefaultWorkerReceiver[PullP]{}, codec.DefaultWorkerSender[PushP]{},
		codec.DefaultPSReceiver[PushP]{}, codec.DefaultPSSender[PullP]{},
		cfg,
	)
}

// TransformFull is spec §6's full custom-routing entrypoint, serving
// both the symmetric and asymmetric variants: every partitioner and
// codec is caller-supplied.
func TransformFull[PullP, PushP, In, Out1, Out2 any](
	ctx context.Context,
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[PullP, PushP, In, Out1],
	psLogicFactory func(ps.PartitionIndex) ps.ParameterServerLogic[PullP, PushP, Out2],
	w2s ps.WorkerToServerPartitioner,
	s2w ps.ServerToWorkerPartitioner,
	workerReceiver ps.WorkerReceiver[PullP],
	workerSender ps.WorkerSender[PushP],
	psReceiver ps.PSReceiver[PushP],
	psSender ps.PSSender[PullP],
	cfg ps.Config,
) (<-chan ps.Either[Out1, Out2], <-chan error) {
	workerLogic := buildWorkerLogic(cfg.WorkerParallelism, workerLogicFactory)
	psLogic := buildPSLogic(cfg.ServerParallelism, psLogicFactory)
	return ps.RunEngine[PullP, PushP, In, Out1, Out2](
		ctx, cfg, trainingData, workerLogic, psLogic,
		w2s, s2w, workerSender, psReceiver, psSender, workerReceiver,
	)
}

// TransformWithModelLoad is spec §6's single-side preload entrypoint.
// model is rebalanced across worker partitions (spec §4.5 step 1); a
// worker partition whose share of model is empty is a hard error
// (ErrModelLoadIncomplete), surfaced on the returned error channel.
func TransformWithModelLoad[P, In, Out1, Out2 any](
	ctx context.Context,
	model ps.ModelSource[P],
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[P, P, In, Out1],
	psLogicFactory func(ps.PartitionIndex) ps.ParameterServerLogic[P, P, Out2],
	cfg ps.Config,
) (<-chan ps.Either[Out1, Out2], <-chan error) {
	workerLogic := buildWorkerLogic(cfg.WorkerParallelism, workerLogicFactory)
	psLogic := buildPSLogic(cfg.ServerParallelism, psLogicFactory)
	return ps.RunLoadingEngine[P, In, Out1, Out2](
		ctx, cfg, trainingData, []<-chan ps.ModelRecord[P](model), nil, false,
		workerLogic, psLogic,
		defaultW2S(), defaultS2W(),
		codec.DefaultWorkerSender[P]{}, codec.DefaultPSReceiver[P]{},
		codec.DefaultPSSender[P]{}, codec.DefaultWorkerReceiver[P]{},
	)
}

// TransformWithDoubleModelLoad is spec §6's two-sided preload
// entrypoint: model carries Left(server-side)/Right(worker-side)
// parameter copies, and workerLogicFactory must produce values
// implementing ps.ModelUpdater[P] to receive the worker-side copies.
func TransformWithDoubleModelLoad[P, In, Out1, Out2 any](
	ctx context.Context,
	model ps.DoubleModelSource[P],
	trainingData []<-chan In,
	workerLogicFactory func(ps.PartitionIndex) ps.WorkerLogic[P, P, In, Out1],
	psLogicFactory func(ps.PartitionIndex) ps.ParameterServerLogic[P, P, Out2],
	cfg ps.Config,
) (<-chan ps.Either[Out1, Out2], <-chan error) {
	workerLogic := buildWorkerLogic(cfg.WorkerParallelism, workerLogicFactory)
	psLogic := buildPSLogic(cfg.ServerParallelism, psLogicFactory)
	return ps.RunLoadingEngine[P, In, Out1, Out2](
		ctx, cfg, trainingData, nil, []<-chan ps.DoubleModelRecord[P](model), true,
		workerLogic, psLogic,
		defaultW2S(), defaultS2W(),
		codec.DefaultWorkerSender[P]{}, codec.DefaultPSReceiver[P]{},
		codec.DefaultPSSender[P]{}, codec.DefaultWorkerReceiver[P]{},
	)
}
