// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package learner is the public API of the multi-agent learner core.
//
// A Learner owns one trainable module per agent or policy, binds each to
// its own optimizer and, in distributed mode, averages gradients across
// a worker group.
//
// # Basic Usage
//
//	l, err := learner.New(learner.Config{
//	    Optimizer:       optim.KindAdam,
//	    OptimizerConfig: map[string]float64{"lr": 1e-3},
//	})
//	if err := l.Build(ctx); err != nil { ... }
//	_, err = l.AddModule(ctx, "policy_1", nn.LinearSpec{InFeatures: 4, OutFeatures: 2})
//	losses, err := l.Update(ctx, batch, lossFn)
//
// # Distributed Training
//
// Workers of one run share a Group. NewLocalGroup connects goroutines of
// one process; DialSocketIO joins a rendezvous server started with
// NewRendezvous or "learner rendezvous":
//
//	group, _ := learner.NewLocalGroup(2)
//	l0, _ := learner.New(cfg, learner.WithGroup(group.Member(0)))
//	l1, _ := learner.New(cfg, learner.WithGroup(group.Member(1)))
package learner

import (
	"context"

	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/learner"
)

// Learner is the per-worker learner core.
type Learner = learner.Learner

// Config holds the learner settings.
type Config = learner.Config

// Option configures a Learner.
type Option = learner.Option

// AddOption customizes AddModule.
type AddOption = learner.AddOption

// ModuleID identifies a module.
type ModuleID = learner.ModuleID

// Gradients maps parameter references to gradients.
type Gradients = learner.Gradients

// Weights maps module ids to module state.
type Weights = learner.Weights

// OptimizerPair binds parameters to an optimizer.
type OptimizerPair = learner.OptimizerPair

// OptimizerFunc builds the optimizer pairs of a module.
type OptimizerFunc = learner.OptimizerFunc

// LossFunc computes the losses of one batch.
type LossFunc = learner.LossFunc

// Batch types.
type (
	SampleBatch     = learner.SampleBatch
	MultiAgentBatch = learner.MultiAgentBatch
	NativeBatch     = learner.NativeBatch
)

// Group is a distributed process group.
type Group = dist.Group

// LocalGroup connects in-process workers.
type LocalGroup = dist.LocalGroup

// SocketIOConfig describes a rendezvous server connection.
type SocketIOConfig = dist.SocketIOConfig

// Rendezvous is the socket.io server that SocketIO group members join.
type Rendezvous = dist.Rendezvous

// Enumerator reports visible accelerators.
type Enumerator = device.Enumerator

// Assigner picks the accelerator of a distributed worker.
type Assigner = device.Assigner

// LossKeyTotal is the loss entry gradients are computed from.
const LossKeyTotal = learner.LossKeyTotal

// Errors.
var (
	ErrDuplicateModule       = learner.ErrDuplicateModule
	ErrUnknownModule         = learner.ErrUnknownModule
	ErrUnknownParamRef       = learner.ErrUnknownParamRef
	ErrAlreadyWrapped        = learner.ErrAlreadyWrapped
	ErrMissingLossKey        = learner.ErrMissingLossKey
	ErrNotBuilt              = learner.ErrNotBuilt
	ErrInvalidDevice         = learner.ErrInvalidDevice
	ErrMissingHyperparameter = learner.ErrMissingHyperparameter
	ErrShapeMismatch         = learner.ErrShapeMismatch
	ErrGroupBroken           = learner.ErrGroupBroken
)

// New creates a learner.
func New(cfg Config, opts ...Option) (*Learner, error) { return learner.New(cfg, opts...) }

// DefaultConfig returns a CPU Adam configuration.
func DefaultConfig() Config { return learner.DefaultConfig() }

// Learner options.
var (
	WithGroup         = learner.WithGroup
	WithEnumerator    = learner.WithEnumerator
	WithAssigner      = learner.WithAssigner
	WithLogger        = learner.WithLogger
	WithInitialModule = learner.WithInitialModule
)

// AddModule options.
var (
	WithOverride      = learner.WithOverride
	WithOptimizerFunc = learner.WithOptimizerFunc
	WithOptimizerKind = learner.WithOptimizerKind
)

// NewLocalGroup creates an in-process group of size members.
func NewLocalGroup(size int) (*LocalGroup, error) { return dist.NewLocalGroup(size) }

// DialSocketIO joins the socket.io rendezvous group described by cfg.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*dist.SocketIOGroup, error) {
	return dist.DialSocketIO(ctx, cfg)
}

// NewRendezvous creates a rendezvous server for namespace.
func NewRendezvous(ctx context.Context, namespace string) *Rendezvous {
	return dist.NewRendezvous(ctx, namespace)
}

// StaticAccelerators reports a fixed accelerator count.
func StaticAccelerators(n int) Enumerator { return device.Static(n) }

// DetectAccelerators returns the compiled-in accelerator runtime that sees
// at least one device.
func DetectAccelerators() Enumerator { return device.Detect() }
