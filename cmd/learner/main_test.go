package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/born-ml/learner/internal/checkpoint"
	"github.com/born-ml/learner/internal/config"
	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/dist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testConfig(t *testing.T, workers int) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
learner {
  optimizer        = "sgd"
  optimizer_config = { lr = 0.1 }
}
module "policy" {
  in_features  = 3
  out_features = 2
  seed         = 5
}
module "entropy" {
  kind = "value"
  init = [1.0]
}
`), "test.hcl")
	require.NoError(t, err)
	cfg.Training.Workers = workers
	cfg.Training.Steps = 30
	cfg.Training.BatchSize = 16
	cfg.Training.Checkpoint = filepath.Join(t.TempDir(), "run.blrn")
	return cfg
}

func TestTrainLocal_ReducesLoss(t *testing.T) {
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.Discard())

	short := testConfig(t, 2)
	short.Training.Steps = 1
	first, err := trainLocal(ctx, short)
	require.NoError(t, err)

	cfg := testConfig(t, 2)
	losses, err := trainLocal(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, losses, 2)
	for rank := range losses {
		assert.Less(t, losses[rank], first[rank], "rank %d", rank)
	}

	c, err := checkpoint.Load(cfg.Training.Checkpoint)
	require.NoError(t, err)
	assert.Equal(t, int64(30), c.Step)
	assert.Equal(t, []string{"policy", "entropy"}, c.Modules)
	assert.Equal(t, []int{2, 3}, c.Weights["policy"]["weight"].Shape)
}

func TestInspect(t *testing.T) {
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.Discard())
	cfg := testConfig(t, 1)
	cfg.Training.Steps = 2
	_, err := trainLocal(ctx, cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"inspect", cfg.Training.Checkpoint})
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	assert.Contains(t, out.String(), "step:    2")
	assert.Contains(t, out.String(), "module policy (8 parameters")
	assert.Contains(t, out.String(), "entropy")
}

func TestTrainRemote_MatchesLocal(t *testing.T) {
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), ctxlog.Discard()))
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- dist.NewRendezvous(ctx, "").Serve(ctx, ln) }()

	local := testConfig(t, 2)
	local.Training.Steps = 5
	want, err := trainLocal(ctx, local)
	require.NoError(t, err)

	remote := testConfig(t, 2)
	remote.Training.Steps = 5
	got := make([]float32, 2)
	var eg errgroup.Group
	for rank := range 2 {
		eg.Go(func() error {
			losses, err := trainRemote(ctx, remote, dist.SocketIOConfig{
				URL:     "http://" + ln.Addr().String(),
				GroupID: "cli",
				Rank:    rank,
				Size:    2,
			})
			if err != nil {
				return err
			}
			got[rank] = losses[0]
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.InDeltaSlice(t, want, got, 1e-6)

	c, err := checkpoint.Load(remote.Training.Checkpoint)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Step)

	cancel()
	require.NoError(t, <-served)
}
