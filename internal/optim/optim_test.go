package optim_test

import (
	"errors"
	"testing"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
	"github.com/born-ml/learner/internal/tensor"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func newParam(t *testing.T, name string, data ...float32) *nn.Parameter {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape{len(data)}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewParameter(name, x)
}

func setGrad(t *testing.T, p *nn.Parameter, data ...float32) {
	t.Helper()
	g, err := tensor.FromSlice(data, p.Shape(), tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	p.SetGrad(g)
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	param := newParam(t, "x", 2.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	setGrad(t, param, 1.0)
	optimizer.Step()

	// Expected: x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want %f", actual, 1.9)
	}
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	param := newParam(t, "x", 1.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// Step 1: v = 1, x = 1 - 0.1 = 0.9
	setGrad(t, param, 1.0)
	optimizer.Step()
	// Step 2: v = 0.9 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	optimizer.Step()

	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 0.71, 1e-5) {
		t.Errorf("SGD momentum: got %f, want %f", actual, 0.71)
	}
}

func TestSGD_SkipsEmptyGradient(t *testing.T) {
	a, b := newParam(t, "a", 1), newParam(t, "b", 1)
	optimizer := optim.NewSGD([]*nn.Parameter{a, b}, optim.SGDConfig{LR: 0.5})

	setGrad(t, a, 1)
	optimizer.Step()

	if got := b.Tensor().Data()[0]; got != 1 {
		t.Errorf("parameter without gradient changed: %f", got)
	}
	if got := a.Tensor().Data()[0]; !floatEqual(got, 0.5, 1e-6) {
		t.Errorf("a = %f, want 0.5", got)
	}
}

// TestAdam_FirstStepMovesByLR checks the bias-corrected first step.
func TestAdam_FirstStepMovesByLR(t *testing.T) {
	param := newParam(t, "x", 3.0, -2.0)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.1})

	setGrad(t, param, 6.0, -4.0)
	optimizer.Step()

	data := param.Tensor().Data()
	if !floatEqual(data[0], 2.9, 1e-5) || !floatEqual(data[1], -1.9, 1e-5) {
		t.Errorf("Adam first step: got %v, want [2.9 -1.9]", data)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("timestep = %d, want 1", optimizer.GetTimestep())
	}
}

func TestZeroGrad_EmptiesSlots(t *testing.T) {
	param := newParam(t, "x", 1)
	setGrad(t, param, 1)

	optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{}).ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad must empty the gradient slot")
	}
}

func TestNew(t *testing.T) {
	param := newParam(t, "x", 1)
	params := []*nn.Parameter{param}

	opt, err := optim.New(optim.KindSGD, params, map[string]float64{"lr": 0.25})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opt.(*optim.SGD); !ok {
		t.Errorf("New(sgd) = %T", opt)
	}
	if opt.GetLR() != 0.25 {
		t.Errorf("lr = %f, want 0.25", opt.GetLR())
	}

	opt, err = optim.New("", params, map[string]float64{"lr": 0.25})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opt.(*optim.Adam); !ok {
		t.Errorf("default kind = %T, want *optim.Adam", opt)
	}

	_, err = optim.New(optim.KindAdam, params, map[string]float64{"beta1": 0.8})
	if !errors.Is(err, optim.ErrMissingHyperparameter) {
		t.Errorf("missing lr: err = %v", err)
	}

	if _, err := optim.New("rmsprop", params, map[string]float64{"lr": 1}); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]optim.Kind{"": optim.KindAdam, "adam": optim.KindAdam, "sgd": optim.KindSGD} {
		got, err := optim.ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := optim.ParseKind("lion"); err == nil {
		t.Error("ParseKind(lion) must fail")
	}
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	p1 := newParam(t, "x", 1, 2)
	a := optim.NewAdam([]*nn.Parameter{p1}, optim.AdamConfig{LR: 0.01})
	setGrad(t, p1, 0.5, -0.5)
	a.Step()
	a.Step()

	p2 := newParam(t, "x", 1, 2)
	b := optim.NewAdam([]*nn.Parameter{p2}, optim.AdamConfig{LR: 0.01})
	if err := b.LoadStateDict(a.StateDict()); err != nil {
		t.Fatal(err)
	}
	if b.GetTimestep() != 2 {
		t.Errorf("timestep = %d, want 2", b.GetTimestep())
	}

	copy(p2.Tensor().Data(), p1.Tensor().Data())
	setGrad(t, p2, 0.5, -0.5)
	a.Step()
	b.Step()
	for i := range p1.Tensor().Data() {
		if !floatEqual(p1.Tensor().Data()[i], p2.Tensor().Data()[i], 1e-6) {
			t.Errorf("param[%d] diverged after restore", i)
		}
	}
}

func TestSGD_LoadStateDictShapeMismatch(t *testing.T) {
	param := newParam(t, "x", 1, 2)
	s := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	bad := tensor.Scalar(1, tensor.CPU)
	err := s.LoadStateDict(map[string]*tensor.RawTensor{"velocity.0": bad})
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestNew_ExplicitZeroIsKept(t *testing.T) {
	for _, kind := range []optim.Kind{optim.KindSGD, optim.KindAdam} {
		param := newParam(t, "x", 3)
		opt, err := optim.New(kind, []*nn.Parameter{param}, map[string]float64{"lr": 0})
		if err != nil {
			t.Fatal(err)
		}
		if opt.GetLR() != 0 {
			t.Errorf("%s: lr = %f, want 0", kind, opt.GetLR())
		}

		setGrad(t, param, 6)
		opt.Step()
		if got := param.Tensor().Data()[0]; got != 3 {
			t.Errorf("%s: x = %f after a zero-lr step, want 3", kind, got)
		}
	}
}

func TestNew_ExplicitZeroBeta1(t *testing.T) {
	// beta1 = 0 makes the first moment the raw gradient; beta2 = 0 does the
	// same for the second moment, so every step moves by lr * sign(g).
	param := newParam(t, "x", 3)
	opt, err := optim.New(optim.KindAdam, []*nn.Parameter{param},
		map[string]float64{"lr": 0.1, "beta1": 0, "beta2": 0, "eps": 0})
	if err != nil {
		t.Fatal(err)
	}

	setGrad(t, param, 6)
	opt.Step()
	setGrad(t, param, 2)
	opt.Step()

	if got := param.Tensor().Data()[0]; !floatEqual(got, 2.8, 1e-6) {
		t.Errorf("x = %f, want 2.8", got)
	}
}
