package learner

import (
	"errors"

	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/optim"
	"github.com/born-ml/learner/internal/tensor"
)

// Errors returned by the learner. Callers match them with errors.Is; none
// of them is retried internally.
var (
	ErrDuplicateModule = errors.New("duplicate module")
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownParamRef = errors.New("unknown parameter reference")
	ErrAlreadyWrapped  = errors.New("module already wrapped")
	ErrMissingLossKey  = errors.New("missing loss key")
	ErrNotBuilt        = errors.New("learner not built")

	ErrInvalidDevice         = device.ErrInvalidDevice
	ErrMissingHyperparameter = optim.ErrMissingHyperparameter
	ErrShapeMismatch         = tensor.ErrShapeMismatch
	ErrGroupBroken           = dist.ErrGroupBroken
)
