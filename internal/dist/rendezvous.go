package dist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/zishang520/socket.io/v2/socket"
)

// Rendezvous is the socket.io server SocketIOGroup members meet at.
//
// Each "allreduce" event contributes one rank's buffer to a (group, round)
// slot. When every rank of the round has arrived, all members are
// acknowledged with the element-wise mean. A malformed contribution or the
// disconnect of a member breaks the group: pending and later rounds of that
// group are acknowledged with an error.
type Rendezvous struct {
	io      *socket.Server
	handler http.Handler
	logger  *slog.Logger

	mu      sync.Mutex
	rounds  map[roundKey]*pendingRound
	members map[socket.SocketId]map[string]int // socket -> group -> rank
	broken  map[string]string                  // group -> reason
}

type roundKey struct {
	group string
	round uint64
}

type pendingRound struct {
	size int
	sum  []float32
	acks map[int]socket.Ack
}

// NewRendezvous creates a rendezvous server serving namespace ("/" when
// empty). It does not listen; use Serve or mount Handler.
func NewRendezvous(ctx context.Context, namespace string) *Rendezvous {
	if namespace == "" {
		namespace = "/"
	}
	r := &Rendezvous{
		io:      socket.NewServer(nil, nil),
		logger:  ctxlog.FromContext(ctx).With("namespace", namespace),
		rounds:  make(map[roundKey]*pendingRound),
		members: make(map[socket.SocketId]map[string]int),
		broken:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultSocketIOPath, r.io.ServeHandler(nil))
	r.handler = mux

	_ = r.io.Of(namespace, nil).On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		sid := client.Id()
		r.logger.Debug("Member connected", "sid", sid)

		_ = client.On("allreduce", func(args ...any) {
			r.onAllReduce(sid, args)
		})
		_ = client.On("disconnect", func(reason ...any) {
			r.onDisconnect(sid, fmt.Sprint(reason...))
		})
	})
	return r
}

// Handler returns the HTTP handler serving DefaultSocketIOPath.
func (r *Rendezvous) Handler() http.Handler { return r.handler }

// Serve accepts members on ln until ctx is done.
func (r *Rendezvous) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: r.handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	r.logger.Info("Rendezvous server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		r.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("rendezvous server: %w", err)
	case <-ctx.Done():
	}

	r.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rendezvous shutdown: %w", err)
	}
	return nil
}

// Close disconnects every member.
func (r *Rendezvous) Close() {
	r.io.Close(nil)
}

func (r *Rendezvous) onAllReduce(sid socket.SocketId, args []any) {
	if len(args) < 2 {
		r.logger.Warn("Dropping allreduce without ack", "sid", sid)
		return
	}
	ack, ok := args[len(args)-1].(socket.Ack)
	if !ok {
		r.logger.Warn("Dropping allreduce without ack", "sid", sid)
		return
	}

	req, err := decodeRequest(args[0])
	if err != nil {
		r.logger.Warn("Rejecting allreduce", "sid", sid, "error", err)
		sendReply(ack, &reduceReply{Error: err.Error()})
		return
	}

	acks, reply := r.contribute(sid, req, ack)
	for _, a := range acks {
		sendReply(a, reply)
	}
}

// contribute records req and returns the acks to fire with reply. Nothing
// is returned while the round is still waiting for members.
func (r *Rendezvous) contribute(sid socket.SocketId, req *reduceRequest, ack socket.Ack) ([]socket.Ack, *reduceReply) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reason, ok := r.broken[req.Group]; ok {
		return []socket.Ack{ack}, &reduceReply{Round: req.Round, Error: reason}
	}

	if req.Size < 1 || req.Rank < 0 || req.Rank >= req.Size {
		reason := fmt.Sprintf("rank %d invalid for size %d", req.Rank, req.Size)
		return append(r.breakGroup(req.Group, reason), ack), &reduceReply{Round: req.Round, Error: reason}
	}

	groups := r.members[sid]
	if groups == nil {
		groups = make(map[string]int)
		r.members[sid] = groups
	}
	groups[req.Group] = req.Rank

	key := roundKey{group: req.Group, round: req.Round}
	pr := r.rounds[key]
	if pr == nil {
		pr = &pendingRound{
			size: req.Size,
			sum:  make([]float32, len(req.Data)),
			acks: make(map[int]socket.Ack, req.Size),
		}
		r.rounds[key] = pr
	}

	var reason string
	switch {
	case req.Size != pr.size:
		reason = fmt.Sprintf("round %d: rank %d reports size %d, expected %d", req.Round, req.Rank, req.Size, pr.size)
	case len(req.Data) != len(pr.sum):
		reason = fmt.Sprintf("round %d: rank %d sent %d values, expected %d", req.Round, req.Rank, len(req.Data), len(pr.sum))
	case pr.acks[req.Rank] != nil:
		reason = fmt.Sprintf("round %d: rank %d contributed twice", req.Round, req.Rank)
	}
	if reason != "" {
		return append(r.breakGroup(req.Group, reason), ack), &reduceReply{Round: req.Round, Error: reason}
	}

	for i, v := range req.Data {
		pr.sum[i] += v
	}
	pr.acks[req.Rank] = ack
	if len(pr.acks) < pr.size {
		return nil, nil
	}

	delete(r.rounds, key)
	scale := 1 / float32(pr.size)
	for i := range pr.sum {
		pr.sum[i] *= scale
	}
	acks := make([]socket.Ack, 0, pr.size)
	for rank := 0; rank < pr.size; rank++ {
		acks = append(acks, pr.acks[rank])
	}
	return acks, &reduceReply{Round: req.Round, Data: pr.sum}
}

func (r *Rendezvous) onDisconnect(sid socket.SocketId, reason string) {
	type failure struct {
		acks  []socket.Ack
		cause string
	}

	r.mu.Lock()
	groups := r.members[sid]
	delete(r.members, sid)
	failures := make([]failure, 0, len(groups))
	for group, rank := range groups {
		r.logger.Warn("Member disconnected, breaking group", "group", group, "rank", rank, "reason", reason)
		cause := fmt.Sprintf("rank %d disconnected: %s", rank, reason)
		failures = append(failures, failure{acks: r.breakGroup(group, cause), cause: cause})
	}
	r.mu.Unlock()

	for _, f := range failures {
		for _, a := range f.acks {
			sendReply(a, &reduceReply{Error: f.cause})
		}
	}
}

// breakGroup marks group as broken and returns the acks of its pending
// rounds. The caller holds r.mu.
func (r *Rendezvous) breakGroup(group, reason string) []socket.Ack {
	if _, ok := r.broken[group]; !ok {
		r.broken[group] = reason
	}
	var acks []socket.Ack
	for key, pr := range r.rounds {
		if key.group != group {
			continue
		}
		for _, a := range pr.acks {
			acks = append(acks, a)
		}
		delete(r.rounds, key)
	}
	return acks
}

func sendReply(ack socket.Ack, reply *reduceReply) {
	b, err := encodeReply(reply)
	if err != nil {
		ack(nil, err)
		return
	}
	ack([]any{b}, nil)
}
