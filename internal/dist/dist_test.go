package dist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

func TestLocalGroup_AllReduceMean(t *testing.T) {
	group, err := NewLocalGroup(3)
	require.NoError(t, err)

	bufs := [][]float32{{1, 0}, {2, 3}, {3, 6}}
	var eg errgroup.Group
	for rank := range bufs {
		member := group.Member(rank)
		eg.Go(func() error {
			return member.AllReduceMean(context.Background(), bufs[rank])
		})
	}
	require.NoError(t, eg.Wait())

	for rank, buf := range bufs {
		assert.InDeltaSlice(t, []float32{2, 3}, buf, 1e-6, "rank %d", rank)
	}
}

func TestLocalGroup_RepeatedRounds(t *testing.T) {
	group, err := NewLocalGroup(2)
	require.NoError(t, err)

	var eg errgroup.Group
	results := make([][]float32, 2)
	for rank := 0; rank < 2; rank++ {
		member := group.Member(rank)
		eg.Go(func() error {
			buf := []float32{float32(rank)}
			for i := 0; i < 5; i++ {
				if err := member.AllReduceMean(context.Background(), buf); err != nil {
					return err
				}
				buf[0] += float32(rank)
			}
			results[rank] = buf
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	// Every round leaves both ranks equal; rank 1 then adds 1 after the last one.
	assert.InDelta(t, results[0][0]+1, results[1][0], 1e-6)
}

func TestLocalGroup_CancelBreaksGroup(t *testing.T) {
	group, err := NewLocalGroup(2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = group.Member(0).AllReduceMean(ctx, []float32{1})
	require.ErrorIs(t, err, ErrGroupBroken)

	err = group.Member(1).AllReduceMean(context.Background(), []float32{1})
	require.ErrorIs(t, err, ErrGroupBroken)
	assert.ErrorIs(t, group.Err(), context.DeadlineExceeded)
}

func TestLocalGroup_AbortWakesWaiters(t *testing.T) {
	group, err := NewLocalGroup(2)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- group.Member(0).AllReduceMean(context.Background(), []float32{1})
	}()

	time.Sleep(10 * time.Millisecond)
	group.Abort(errors.New("worker 1 crashed"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrGroupBroken)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by Abort")
	}
}

func TestLocalGroup_LengthMismatch(t *testing.T) {
	group, err := NewLocalGroup(2)
	require.NoError(t, err)

	go func() {
		_ = group.Member(0).AllReduceMean(context.Background(), []float32{1, 2})
	}()
	require.Eventually(t, func() bool {
		group.mu.Lock()
		defer group.mu.Unlock()
		return group.pending != nil
	}, time.Second, time.Millisecond)

	err = group.Member(1).AllReduceMean(context.Background(), []float32{1})
	assert.ErrorIs(t, err, ErrGroupBroken)
}

func TestNewLocalGroup_InvalidSize(t *testing.T) {
	_, err := NewLocalGroup(0)
	assert.Error(t, err)
}

func TestSolo(t *testing.T) {
	g := Solo()
	buf := []float32{4, 5}
	require.NoError(t, g.AllReduceMean(context.Background(), buf))
	assert.Equal(t, []float32{4, 5}, buf)
	assert.Equal(t, 1, g.Size())
	assert.False(t, IsDistributed(g))
	assert.False(t, IsDistributed(nil))
	assert.NotEmpty(t, g.ID())
}

func TestDecodeReply(t *testing.T) {
	b, err := msgpack.Marshal(&reduceReply{Round: 3, Data: []float32{1.5, 2.5}})
	require.NoError(t, err)

	reply, err := decodeReply(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reply.Round)
	assert.Equal(t, []float32{1.5, 2.5}, reply.Data)

	reply, err = decodeReply(string(b))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reply.Round)

	_, err = decodeReply(42)
	assert.Error(t, err)
}

func TestEncodeRequest(t *testing.T) {
	b, err := encodeRequest(&reduceRequest{Group: "g", Rank: 1, Size: 2, Round: 7, Data: []float32{1}})
	require.NoError(t, err)

	var got reduceRequest
	require.NoError(t, msgpack.Unmarshal(b, &got))
	assert.Equal(t, "g", got.Group)
	assert.Equal(t, uint64(7), got.Round)
}
