package learner

import (
	"testing"

	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributedWrapper(t *testing.T) {
	w := NewDistributedWrapper(dist.Solo())

	v, err := nn.NewValue("x", []float32{1}, nil)
	require.NoError(t, err)

	wrapped, err := w.Wrap("v", v)
	require.NoError(t, err)
	ddp, ok := wrapped.(*nn.DDPModule)
	require.True(t, ok)
	assert.Same(t, v, ddp.Unwrap())

	_, err = w.Wrap("v", wrapped)
	assert.ErrorIs(t, err, ErrAlreadyWrapped)

	assert.Same(t, v, w.Unwrap(wrapped))
	assert.Same(t, v, w.Unwrap(v))
}

func TestDistributedWrapper_CompositeWithWrappedChild(t *testing.T) {
	w := NewDistributedWrapper(dist.Solo())

	a, err := nn.NewValue("x", []float32{1}, nil)
	require.NoError(t, err)
	b, err := nn.NewValue("x", []float32{2}, nil)
	require.NoError(t, err)
	wrappedB, err := w.Wrap("b", b)
	require.NoError(t, err)

	c, err := nn.NewComposite(nn.Child{ID: "a", Module: a}, nn.Child{ID: "b", Module: wrappedB})
	require.NoError(t, err)

	_, err = w.Wrap("team", c)
	assert.ErrorIs(t, err, ErrAlreadyWrapped)

	// Nothing was replaced.
	child, ok := c.Child("a")
	require.True(t, ok)
	assert.Same(t, a, child)
}

func TestParamRegistry(t *testing.T) {
	r := NewParamRegistry()
	a, err := nn.NewValue("x", []float32{1}, nil)
	require.NoError(t, err)
	b, err := nn.NewValue("y", []float32{2, 3}, tensor.Shape{2})
	require.NoError(t, err)

	r.Register("a", a)
	r.Register("b", b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []nn.ParamRef{a.Param().Ref(), b.Param().Ref()}, r.Refs())

	p, id, ok := r.Lookup(b.Param().Ref())
	require.True(t, ok)
	assert.Same(t, b.Param(), p)
	assert.Equal(t, "b", id)

	r.Unregister("a")
	_, _, ok = r.Lookup(a.Param().Ref())
	assert.False(t, ok)
	assert.Equal(t, []nn.ParamRef{b.Param().Ref()}, r.Refs())
	assert.Equal(t, []nn.ParamRef{b.Param().Ref()}, r.ModuleRefs("b"))
}
