package learner

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/nn"
)

// DistributedWrapper wraps modules for data-parallel training over a group.
//
// Wrapping always happens at leaf granularity: a leaf becomes an
// nn.DDPModule, a composite keeps its identity and has each child wrapped
// in place.
type DistributedWrapper struct {
	group dist.Group
}

// NewDistributedWrapper creates a wrapper for group.
func NewDistributedWrapper(group dist.Group) *DistributedWrapper {
	return &DistributedWrapper{group: group}
}

// Group returns the process group.
func (w *DistributedWrapper) Group() dist.Group { return w.group }

// Wrap wraps module registered under id.
func (w *DistributedWrapper) Wrap(id ModuleID, module nn.Module) (nn.Module, error) {
	switch m := module.(type) {
	case *nn.DDPModule:
		return nil, fmt.Errorf("%w: %q", ErrAlreadyWrapped, id)
	case *nn.Composite:
		// Validate the whole tree before replacing any child.
		if err := w.checkUnwrapped(id, m); err != nil {
			return nil, err
		}
		for _, child := range m.Children() {
			wrapped, err := w.Wrap(id+nn.StateSeparator+child.ID, child.Module)
			if err != nil {
				unwrap(m)
				return nil, err
			}
			if err := m.Replace(child.ID, wrapped); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		ddp, err := nn.NewDDPModule(module, w.group)
		if err != nil {
			return nil, fmt.Errorf("wrap %q: %w", id, err)
		}
		return ddp, nil
	}
}

func (w *DistributedWrapper) checkUnwrapped(id ModuleID, c *nn.Composite) error {
	for _, child := range c.Children() {
		childID := id + nn.StateSeparator + child.ID
		switch m := child.Module.(type) {
		case *nn.DDPModule:
			return fmt.Errorf("%w: %q", ErrAlreadyWrapped, childID)
		case *nn.Composite:
			if err := w.checkUnwrapped(childID, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unwrap returns the original module with its current values. Composites
// have their children unwrapped in place.
func (w *DistributedWrapper) Unwrap(module nn.Module) nn.Module {
	return unwrap(module)
}

func unwrap(module nn.Module) nn.Module {
	switch m := module.(type) {
	case *nn.DDPModule:
		return m.Unwrap()
	case *nn.Composite:
		for _, child := range m.Children() {
			_ = m.Replace(child.ID, unwrap(child.Module))
		}
		return m
	default:
		return module
	}
}

// SyncGradients runs the gradient collective of every wrapped leaf of
// module, in child order.
func (w *DistributedWrapper) SyncGradients(ctx context.Context, id ModuleID, module nn.Module) error {
	switch m := module.(type) {
	case *nn.DDPModule:
		if err := m.SyncGradients(ctx); err != nil {
			return fmt.Errorf("module %q: %w", id, err)
		}
	case *nn.Composite:
		for _, child := range m.Children() {
			if err := w.SyncGradients(ctx, id+nn.StateSeparator+child.ID, child.Module); err != nil {
				return err
			}
		}
	}
	return nil
}
