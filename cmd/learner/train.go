package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/born-ml/learner/internal/config"
	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/learner"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	trainConfigPath string
	trainCheckpoint string
	trainSteps      int
	trainRendezvous string
	trainRank       int
	trainWorldSize  int
	trainGroupID    string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train modules on a synthetic regression task",
	Long: `Train the configured modules on a synthetic linear regression task.

Without --rendezvous, training.workers learners run in this process and
average their gradients over an in-process group. With --rendezvous, this
process runs a single worker that joins a socket.io rendezvous server.`,
	Example: `  # Two in-process workers
  learner train --config learner.hcl

  # Rank 1 of 4 in a multi-process run, against "learner rendezvous"
  learner train --config learner.hcl --rendezvous http://head:3000/socket.io/ --rank 1 --world-size 4 --group run-7`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg := config.Default()
		if trainConfigPath != "" {
			var err error
			if cfg, err = config.Load(ctx, trainConfigPath); err != nil {
				return err
			}
		}
		if trainSteps > 0 {
			cfg.Training.Steps = trainSteps
		}
		if trainCheckpoint != "" {
			cfg.Training.Checkpoint = trainCheckpoint
		}

		var losses []float32
		var err error
		if trainRendezvous != "" {
			groupID := trainGroupID
			if groupID == "" {
				groupID = uuid.NewString()
			}
			losses, err = trainRemote(ctx, cfg, dist.SocketIOConfig{
				URL:     trainRendezvous,
				GroupID: groupID,
				Rank:    trainRank,
				Size:    trainWorldSize,
			})
		} else {
			losses, err = trainLocal(ctx, cfg)
		}
		if err != nil {
			return err
		}
		for rank, loss := range losses {
			fmt.Fprintf(cmd.OutOrStdout(), "worker %d: final loss %.6f\n", rank, loss)
		}
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainConfigPath, "config", "c", "", "HCL config file")
	trainCmd.Flags().StringVar(&trainCheckpoint, "checkpoint", "", "checkpoint output path (overrides training.checkpoint)")
	trainCmd.Flags().IntVar(&trainSteps, "steps", 0, "number of steps (overrides training.steps)")
	trainCmd.Flags().StringVar(&trainRendezvous, "rendezvous", "", "socket.io rendezvous URL")
	trainCmd.Flags().IntVar(&trainRank, "rank", 0, "worker rank with --rendezvous")
	trainCmd.Flags().IntVar(&trainWorldSize, "world-size", 1, "number of workers with --rendezvous")
	trainCmd.Flags().StringVar(&trainGroupID, "group", "", "group id with --rendezvous")
}

// trainLocal runs training.workers learners over an in-process group.
func trainLocal(ctx context.Context, cfg *config.Config) ([]float32, error) {
	workers := cfg.Training.Workers
	group, err := dist.NewLocalGroup(workers)
	if err != nil {
		return nil, err
	}

	losses := make([]float32, workers)
	g, gctx := errgroup.WithContext(ctx)
	for rank := range workers {
		g.Go(func() error {
			loss, err := runWorker(gctx, cfg, group.Member(rank))
			if err != nil {
				// Release peers blocked in a collective.
				group.Abort(err)
				return fmt.Errorf("worker %d: %w", rank, err)
			}
			losses[rank] = loss
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return losses, nil
}

// trainRemote runs one worker joined to a socket.io rendezvous group.
func trainRemote(ctx context.Context, cfg *config.Config, sio dist.SocketIOConfig) ([]float32, error) {
	group, err := dist.DialSocketIO(ctx, sio)
	if err != nil {
		return nil, err
	}
	defer func() { _ = group.Close() }()

	loss, err := runWorker(ctx, cfg, group)
	if err != nil {
		return nil, err
	}
	return []float32{loss}, nil
}

// runWorker trains one learner and returns its last total loss. Rank 0
// writes the checkpoint.
func runWorker(ctx context.Context, cfg *config.Config, group dist.Group) (float32, error) {
	logger := ctxlog.FromContext(ctx).With("rank", group.Rank())
	ctx = ctxlog.WithLogger(ctx, logger)

	lcfg := cfg.Learner
	lcfg.Distributed = lcfg.Distributed || dist.IsDistributed(group)

	modules := cfg.Modules
	if len(modules) == 0 {
		modules = []config.Module{{ID: "policy", Kind: config.ModuleKindLinear, InFeatures: 4, OutFeatures: 1, Seed: cfg.Training.Seed}}
	}

	opts := []learner.Option{learner.WithGroup(group), learner.WithLogger(logger)}
	for _, m := range modules {
		opts = append(opts, learner.WithInitialModule(m.ID, m.Spec(), m.Options()...))
	}
	l, err := learner.New(lcfg, opts...)
	if err != nil {
		return 0, err
	}
	if err := l.Build(ctx); err != nil {
		return 0, err
	}

	task := newRegressionTask(modules, cfg.Training.Seed)
	//nolint:gosec // synthetic data
	rng := rand.New(rand.NewSource(cfg.Training.Seed + int64(group.Rank()) + 1))

	var last float32
	for step := 1; step <= cfg.Training.Steps; step++ {
		losses, err := l.Update(ctx, task.batch(rng, cfg.Training.BatchSize), task.loss)
		if err != nil {
			return 0, fmt.Errorf("step %d: %w", step, err)
		}
		last = losses[learner.LossKeyTotal]
		if step%10 == 0 || step == cfg.Training.Steps {
			logger.Info("Training progress", "step", step, "loss", last)
		}
	}

	if group.Rank() == 0 && cfg.Training.Checkpoint != "" {
		if err := l.SaveCheckpoint(ctx, cfg.Training.Checkpoint); err != nil {
			return 0, err
		}
	}
	return last, nil
}

// regressionTask generates batches y = x·Wᵀ + b for every linear module
// and drives value modules towards zero.
type regressionTask struct {
	modules []config.Module
	targets map[string]*nn.Linear
}

func newRegressionTask(modules []config.Module, seed int64) *regressionTask {
	t := &regressionTask{modules: modules, targets: make(map[string]*nn.Linear)}
	for i, m := range modules {
		if m.Kind != config.ModuleKindLinear {
			continue
		}
		//nolint:gosec // synthetic data
		rng := rand.New(rand.NewSource(seed*1_000 + int64(i) + 17))
		t.targets[m.ID] = nn.NewLinear(m.InFeatures, m.OutFeatures, rng)
	}
	return t
}

func (t *regressionTask) batch(rng *rand.Rand, size int) learner.MultiAgentBatch {
	batch := make(learner.MultiAgentBatch)
	for _, m := range t.modules {
		target, ok := t.targets[m.ID]
		if !ok {
			continue
		}
		obs := make([]float32, size*m.InFeatures)
		for i := range obs {
			obs[i] = float32(rng.NormFloat64())
		}

		w := target.Weight().Tensor().Data()
		b := target.Bias().Tensor().Data()
		ys := make([]float32, size*m.OutFeatures)
		for r := range size {
			for o := range m.OutFeatures {
				y := b[o]
				for k := range m.InFeatures {
					y += obs[r*m.InFeatures+k] * w[o*m.InFeatures+k]
				}
				ys[r*m.OutFeatures+o] = y
			}
		}

		batch[m.ID] = learner.SampleBatch{
			"obs":     {Shape: []int{size, m.InFeatures}, Data: obs},
			"targets": {Shape: []int{size, m.OutFeatures}, Data: ys},
		}
	}
	return batch
}

func (t *regressionTask) loss(_ context.Context, l *learner.Learner, batch learner.NativeBatch) (map[string]*tensor.RawTensor, error) {
	backend := l.Backend()
	out := make(map[string]*tensor.RawTensor, len(t.modules)+1)

	var total *tensor.RawTensor
	for _, m := range t.modules {
		var loss *tensor.RawTensor
		switch m.Kind {
		case config.ModuleKindLinear:
			pred, err := l.Forward(m.ID, batch.Column(m.ID, "obs"))
			if err != nil {
				return nil, err
			}
			loss = nn.MSE(backend, pred, batch.Column(m.ID, "targets"))
		default:
			v, err := l.Forward(m.ID, nil)
			if err != nil {
				return nil, err
			}
			loss = nn.SumSquares(backend, v)
		}
		out[m.ID] = loss
		if total == nil {
			total = loss
		} else {
			total = backend.Add(total, loss)
		}
	}
	out[learner.LossKeyTotal] = total
	return out, nil
}
