package dist

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/google/uuid"
)

// LocalGroup is an in-process collective connecting goroutine workers.
// Use Member to obtain the Group handle for each rank.
type LocalGroup struct {
	id   string
	size int

	mu       sync.Mutex
	pending  *round
	err      error
	brokenCh chan struct{}
}

// round collects the contributions of one collective call.
type round struct {
	sum     []float32
	arrived int
	done    chan struct{}
}

// NewLocalGroup creates an in-process group with size members.
func NewLocalGroup(size int) (*LocalGroup, error) {
	if size < 1 {
		return nil, fmt.Errorf("local group: size must be positive, got %d", size)
	}
	return &LocalGroup{
		id:       uuid.NewString(),
		size:     size,
		brokenCh: make(chan struct{}),
	}, nil
}

// Member returns the Group handle for rank.
func (g *LocalGroup) Member(rank int) Group {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("local group: rank %d out of range [0, %d)", rank, g.size))
	}
	return &localMember{group: g, rank: rank}
}

// Abort breaks the group. Pending and future collectives fail with ErrGroupBroken.
func (g *LocalGroup) Abort(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.abortLocked(cause)
}

func (g *LocalGroup) abortLocked(cause error) {
	if g.err != nil {
		return
	}
	g.err = cause
	close(g.brokenCh)
}

// Err returns the cause the group was broken with, or nil.
func (g *LocalGroup) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *LocalGroup) brokenError() error {
	return fmt.Errorf("%w: group %s: %v", ErrGroupBroken, g.id, g.err)
}

// contribute adds buf to the pending round and returns the round to wait on.
func (g *LocalGroup) contribute(buf []float32) (*round, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return nil, g.brokenError()
	}

	if g.pending == nil {
		g.pending = &round{sum: make([]float32, len(buf)), done: make(chan struct{})}
	}
	r := g.pending
	if len(r.sum) != len(buf) {
		g.abortLocked(fmt.Errorf("buffer length %d does not match %d", len(buf), len(r.sum)))
		return nil, g.brokenError()
	}

	for i, v := range buf {
		r.sum[i] += v
	}
	r.arrived++

	if r.arrived == g.size {
		inv := 1 / float32(g.size)
		for i := range r.sum {
			r.sum[i] *= inv
		}
		g.pending = nil
		close(r.done)
	}
	return r, nil
}

type localMember struct {
	group *LocalGroup
	rank  int
}

func (m *localMember) ID() string { return m.group.id }
func (m *localMember) Rank() int  { return m.rank }
func (m *localMember) Size() int  { return m.group.size }

func (m *localMember) AllReduceMean(ctx context.Context, buf []float32) error {
	r, err := m.group.contribute(buf)
	if err != nil {
		return err
	}

	select {
	case <-r.done:
	case <-m.group.brokenCh:
		// The round may have completed concurrently with an abort.
		select {
		case <-r.done:
		default:
			return m.group.brokenError()
		}
	case <-ctx.Done():
		select {
		case <-r.done:
			copy(buf, r.sum)
			return nil
		default:
		}
		ctxlog.FromContext(ctx).Warn("Aborting local group", "group", m.group.id, "rank", m.rank, "error", ctx.Err())
		m.group.Abort(ctx.Err())
		return m.group.brokenError()
	}

	copy(buf, r.sum)
	return nil
}
