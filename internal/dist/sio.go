package dist

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultSocketIOPath is the HTTP path the rendezvous server is mounted at.
const DefaultSocketIOPath = "/socket.io/"

// SocketIOConfig describes how to reach the rendezvous server.
type SocketIOConfig struct {
	URL                string // path defaults to DefaultSocketIOPath
	Namespace          string // defaults to "/"
	GroupID            string
	Rank               int
	Size               int
	InsecureSkipVerify bool
}

// SocketIOGroup is a Group whose collectives are coordinated by a socket.io
// rendezvous server. Each member emits an "allreduce" event carrying its
// msgpack-encoded buffer; the server acknowledges once every member of the
// round has arrived, with the averaged buffer.
type SocketIOGroup struct {
	cfg    SocketIOConfig
	client *socket.Socket
	round  atomic.Uint64

	mu       sync.Mutex
	err      error
	brokenCh chan struct{}
}

// DialSocketIO connects to the rendezvous server and returns the member's Group.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIOGroup, error) {
	logger := ctxlog.FromContext(ctx).With("group", cfg.GroupID, "rank", cfg.Rank, "url", cfg.URL)

	if cfg.Size < 1 || cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("socket.io group: rank %d invalid for size %d", cfg.Rank, cfg.Size)
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	path := parsedURL.Path
	if path == "" || path == "/" {
		path = DefaultSocketIOPath
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in for test clusters
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	g := &SocketIOGroup{
		cfg:      cfg,
		client:   io,
		brokenCh: make(chan struct{}),
	}

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to rendezvous server", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Warn("Disconnected from rendezvous server", "reason", reason)
		g.abort(fmt.Errorf("disconnected: %v", reason))
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return g, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	}
}

// ID returns the group id shared by all members.
func (g *SocketIOGroup) ID() string { return g.cfg.GroupID }

// Rank returns this member's rank.
func (g *SocketIOGroup) Rank() int { return g.cfg.Rank }

// Size returns the number of members.
func (g *SocketIOGroup) Size() int { return g.cfg.Size }

// AllReduceMean emits this member's buffer and blocks until the server
// acknowledges the round with the averaged result.
func (g *SocketIOGroup) AllReduceMean(ctx context.Context, buf []float32) error {
	if err := g.brokenErr(); err != nil {
		return err
	}

	round := g.round.Add(1)
	payload, err := encodeRequest(&reduceRequest{
		Group: g.cfg.GroupID,
		Rank:  g.cfg.Rank,
		Size:  g.cfg.Size,
		Round: round,
		Data:  buf,
	})
	if err != nil {
		return err
	}

	type result struct {
		reply *reduceReply
		err   error
	}
	done := make(chan result, 1)

	err = g.client.Emit("allreduce", payload, func(args []any, ackErr error) {
		if ackErr != nil {
			done <- result{err: ackErr}
			return
		}
		if len(args) == 0 {
			done <- result{err: errors.New("empty allreduce ack")}
			return
		}
		reply, err := decodeReply(args[0])
		done <- result{reply: reply, err: err}
	})
	if err != nil {
		g.abort(err)
		return g.brokenErr()
	}

	select {
	case res := <-done:
		if res.err == nil && res.reply.Error != "" {
			res.err = errors.New(res.reply.Error)
		}
		if res.err == nil && len(res.reply.Data) != len(buf) {
			res.err = fmt.Errorf("reply length %d does not match %d", len(res.reply.Data), len(buf))
		}
		if res.err != nil {
			g.abort(res.err)
			return g.brokenErr()
		}
		copy(buf, res.reply.Data)
		return nil
	case <-g.brokenCh:
		return g.brokenErr()
	case <-ctx.Done():
		g.abort(ctx.Err())
		return g.brokenErr()
	}
}

// Close disconnects from the rendezvous server.
func (g *SocketIOGroup) Close() error {
	g.abort(errors.New("closed"))
	g.client.Disconnect()
	return nil
}

func (g *SocketIOGroup) abort(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return
	}
	g.err = cause
	close(g.brokenCh)
}

func (g *SocketIOGroup) brokenErr() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		return nil
	}
	return fmt.Errorf("%w: group %s rank %d: %v", ErrGroupBroken, g.cfg.GroupID, g.cfg.Rank, g.err)
}
