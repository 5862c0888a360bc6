package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pymata-gateway/internal/device"
	"pymata-gateway/internal/model"
)

type handlerKind int

const (
	kindCommand handlerKind = iota // fire-and-forget, ordered
	kindQuery                      // exactly one reply, concurrent
	kindSubscribe                  // installs an adapter, ordered
)

// queueSize bounds the ordered commands waiting behind a slow device call.
const queueSize = 64

// task is a validated invocation waiting to run.
type task func(ctx context.Context)

type handlerSpec struct {
	kind  handlerKind
	arity int
	// prepare coerces parameters and returns the bound invocation.
	prepare func(r *Router, a *args) task
}

// Stats counts traffic on one connection.
type Stats struct {
	commands      atomic.Int64
	replies       atomic.Int64
	notifications atomic.Int64
	dropped       atomic.Int64
}

// Snapshot copies the counters for the session journal.
func (s *Stats) Snapshot() model.SessionStats {
	return model.SessionStats{
		Commands:      s.commands.Load(),
		Replies:       s.replies.Load(),
		Notifications: s.notifications.Load(),
		Dropped:       s.dropped.Load(),
	}
}

// Router dispatches one connection's commands to the device.
type Router struct {
	svc    *Service
	dev    device.Device
	sender MessageSender
	mux    *Multiplexer
	table  map[string]handlerSpec
	log    *slog.Logger
	stats  Stats

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan task
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRouter creates the router for one connection and starts its ordered
// executor. Close must be called when the connection ends.
func (s *Service) NewRouter(sender MessageSender, logger *slog.Logger) *Router {
	if logger == nil {
		logger = s.log
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		svc:    s,
		dev:    s.Device,
		sender: sender,
		table:  dispatchTable(),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan task, queueSize),
		done:   make(chan struct{}),
	}
	r.mux = newMultiplexer(r.notify)
	go r.runOrdered()
	return r
}

func (r *Router) runOrdered() {
	defer close(r.done)
	for {
		select {
		case t := <-r.queue:
			t(r.ctx)
		case <-r.ctx.Done():
			return
		}
	}
}

// Dispatch validates cmd and schedules its device call. It never waits
// for the device: when the ordered queue is full the command is dropped
// with ErrQueueFull. The returned error is for diagnostics only.
func (r *Router) Dispatch(cmd model.Command) error {
	r.stats.commands.Add(1)
	h, ok := r.table[cmd.Method]
	if !ok {
		r.svc.Metrics.RecordCommand("unknown", model.Class(model.ErrUnknownMethod))
		r.log.Debug("ignoring unknown method", "method", cmd.Method)
		return model.NewCommandError(cmd.Method, model.ErrUnknownMethod, "")
	}

	if err := checkArity(h.arity, cmd); err != nil {
		return r.reject(cmd.Method, err.Error())
	}
	a := &args{params: cmd.Params}
	t := h.prepare(r, a)
	if a.err != nil {
		return r.reject(cmd.Method, a.err.Error())
	}
	if r.ctx.Err() != nil {
		return model.NewCommandError(cmd.Method, model.ErrConnectionClosed, "")
	}

	if h.kind == kindQuery {
		r.svc.Metrics.RecordCommand(cmd.Method, "ok")
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			t(r.ctx)
		}()
		return nil
	}

	select {
	case r.queue <- t:
		r.svc.Metrics.RecordCommand(cmd.Method, "ok")
		return nil
	default:
		err := model.NewCommandError(cmd.Method, model.ErrQueueFull, "")
		r.svc.Metrics.RecordCommand(cmd.Method, model.Class(err))
		r.log.Warn("dropping command", "method", cmd.Method, "err", err, "queued", len(r.queue))
		return err
	}
}

func checkArity(arity int, cmd model.Command) error {
	if arity == 0 {
		if cmd.NoParams || len(cmd.Params) == 0 {
			return nil
		}
		return fmt.Errorf("want no params, got %d", len(cmd.Params))
	}
	if cmd.NoParams || len(cmd.Params) != arity {
		return fmt.Errorf("want %d params, got %d", arity, len(cmd.Params))
	}
	return nil
}

func (r *Router) reject(method, detail string) error {
	err := model.NewCommandError(method, model.ErrInvalidArguments, detail)
	r.svc.Metrics.RecordCommand(method, model.Class(err))
	r.log.Warn("dropping command", "method", method, "err", detail)
	return err
}

// Close cancels in-flight work and waits for the executor and query
// goroutines to finish.
func (r *Router) Close() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
		r.wg.Wait()
	})
}

// Stats returns the connection counters.
func (r *Router) Stats() model.SessionStats {
	return r.stats.Snapshot()
}

func (r *Router) send(method string, params any) error {
	if err := r.sender.Send(model.Message{Method: method, Params: params}); err != nil {
		r.stats.dropped.Add(1)
		reason := "write"
		if errors.Is(err, model.ErrConnectionClosed) {
			reason = "closed"
		} else if errors.Is(err, model.ErrMalformedPayload) {
			reason = "encode"
		}
		r.svc.Metrics.RecordDropped(reason)
		r.log.Debug("outbound message dropped", "method", method, "err", err)
		return err
	}
	return nil
}

func (r *Router) reply(method string, params any) {
	if r.ctx.Err() != nil {
		return
	}
	if r.send(method, params) == nil {
		r.stats.replies.Add(1)
		r.svc.Metrics.RecordReply(method)
	}
}

func (r *Router) notify(method string, params any) {
	if r.send(method, params) == nil {
		r.stats.notifications.Add(1)
		r.svc.Metrics.RecordNotification(method)
	}
}

// call runs one device operation, timing it and logging failures.
func (r *Router) call(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.svc.Metrics.ObserveDeviceCall(method, start)
	if err != nil && r.ctx.Err() == nil {
		r.log.Warn("device call failed", "method", method, "err", err)
	}
	return err
}
