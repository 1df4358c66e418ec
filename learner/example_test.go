// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package learner_test

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/learner"
	"github.com/born-ml/learner/nn"
	"github.com/born-ml/learner/optim"
	"github.com/born-ml/learner/tensor"
)

func Example() {
	ctx := context.Background()
	l, err := learner.New(learner.Config{
		Optimizer:       optim.KindSGD,
		OptimizerConfig: map[string]float64{optim.KeyLR: 0.1},
	})
	if err != nil {
		panic(err)
	}
	if err := l.Build(ctx); err != nil {
		panic(err)
	}
	if _, err := l.AddModule(ctx, "x", nn.ValueSpec{Name: "x", Init: []float32{3}}); err != nil {
		panic(err)
	}

	// Minimize x².
	lossFn := func(_ context.Context, l *learner.Learner, _ learner.NativeBatch) (map[string]*tensor.RawTensor, error) {
		x, err := l.Forward("x", nil)
		if err != nil {
			return nil, err
		}
		return map[string]*tensor.RawTensor{learner.LossKeyTotal: nn.SumSquares(l.Backend(), x)}, nil
	}
	if _, err := l.Update(ctx, nil, lossFn); err != nil {
		panic(err)
	}

	w, err := l.GetWeights("x")
	if err != nil {
		panic(err)
	}
	fmt.Printf("%.1f\n", w["x"]["x"].Data[0])
	// Output: 2.4
}
