// Package replay implements host.Host on top of a recorded session. It
// builds blocks on first execution, fires the block event exactly once per
// block before running its hook, and runs the session's threads
// concurrently.
package replay

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"bbtrace/internal/host"
	"bbtrace/internal/modmap"
	"bbtrace/internal/session"
	"bbtrace/internal/trace"
	"bbtrace/internal/x86dec"
)

// ErrNoClient is returned by Run when no block event was registered.
var ErrNoClient = errors.New("replay: no block event registered")

// Options controls a replay.
type Options struct {
	Jobs      int          // concurrent threads (0 = GOMAXPROCS)
	OSThreads bool         // pin each thread to an OS thread and report its tid
	Progress  ProgressSink // optional
}

// compiled is the host's record of one block.
type compiled struct {
	once sync.Once
	hook host.ExecHook
}

// Host replays a session.
type Host struct {
	sess     *session.Session
	opts     Options
	dec      *x86dec.Decoder
	mods     *modmap.Map
	explicit map[host.Addr]*session.Block

	onBlock host.BlockEventFunc
	onExit  []func()

	mu     sync.Mutex
	blocks map[host.Addr]*compiled
}

// New prepares a host for s. s must be normalized.
func New(s *session.Session, opts Options) (*Host, error) {
	regions, err := s.CodeRegions()
	if err != nil {
		return nil, err
	}
	img, err := x86dec.NewImage(regions...)
	if err != nil {
		return nil, err
	}
	syntax, err := x86dec.ParseSyntax(s.Syntax)
	if err != nil {
		return nil, err
	}
	dec, err := x86dec.New(img, s.Mode, syntax)
	if err != nil {
		return nil, err
	}
	mods, err := modmap.New(s.HostModules()...)
	if err != nil {
		return nil, err
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}

	explicit := make(map[host.Addr]*session.Block, len(s.Blocks))
	for i := range s.Blocks {
		explicit[host.Addr(s.Blocks[i].Start)] = &s.Blocks[i]
	}
	return &Host{
		sess:     s,
		opts:     opts,
		dec:      dec,
		mods:     mods,
		explicit: explicit,
		blocks:   make(map[host.Addr]*compiled),
	}, nil
}

// RegisterBlockEvent implements host.Host.
func (h *Host) RegisterBlockEvent(fn host.BlockEventFunc) { h.onBlock = fn }

// RegisterExitEvent implements host.Host.
func (h *Host) RegisterExitEvent(fn func()) { h.onExit = append(h.onExit, fn) }

// Decoder implements host.Host.
func (h *Host) Decoder() host.Decoder { return h.dec }

// Resolver implements host.Host.
func (h *Host) Resolver() host.ModuleResolver { return h.mods }

// Modules exposes the module map.
func (h *Host) Modules() *modmap.Map { return h.mods }

// Run executes every thread of the session and then fires the exit events.
// Exit events run even when a thread fails.
func (h *Host) Run(ctx context.Context) error {
	if h.onBlock == nil {
		return ErrNoClient
	}
	for _, th := range h.sess.Threads {
		h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusQueued, Total: th.Executions()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(h.opts.Jobs, len(h.sess.Threads)))
	for i := range h.sess.Threads {
		th := &h.sess.Threads[i]
		g.Go(func() error {
			return h.runThread(gctx, th)
		})
	}
	err := g.Wait()

	for _, fn := range h.onExit {
		fn()
	}
	return err
}

// runThread replays one thread. A fatal tracer error raised by a hook ends
// the thread with that error so it reaches the caller of Run.
func (h *Host) runThread(ctx context.Context, th *session.Thread) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fe, ok := trace.AsFatal(r)
		if !ok {
			panic(r)
		}
		h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusError, Err: fe})
		err = fmt.Errorf("thread %d: %w", th.ID, fe)
	}()

	tid := th.ID
	if h.opts.OSThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		tid = osThreadID()
	}

	total := th.Executions()
	var done uint64
	h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusRunning, Total: total})
	for _, ex := range th.Exec {
		hook := h.compile(host.Addr(ex.Block))
		for range ex.Times() {
			if err := ctx.Err(); err != nil {
				h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusError, Done: done, Total: total, Err: err})
				return fmt.Errorf("thread %d: %w", th.ID, err)
			}
			if hook != nil {
				hook(tid)
			}
			done++
		}
		h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusRunning, Done: done, Total: total})
	}
	h.opts.Progress.OnEvent(Event{Thread: th.ID, Status: StatusDone, Done: done, Total: total})
	return nil
}

// compile returns the hook for the block at addr, firing the block event the
// first time the block is reached. Threads racing on a new block wait for
// the event to finish, so analysis happens before any execution.
func (h *Host) compile(addr host.Addr) host.ExecHook {
	h.mu.Lock()
	c, ok := h.blocks[addr]
	if !ok {
		c = &compiled{}
		h.blocks[addr] = c
	}
	h.mu.Unlock()

	c.once.Do(func() {
		b, reinstrument := h.buildBlock(addr)
		c.hook, _ = h.onBlock(b)
		for range reinstrument {
			c.hook, _ = h.onBlock(b)
		}
	})
	return c.hook
}

// buildBlock assembles the block starting at addr, either from the
// session's explicit description or by decoding code until a control
// transfer, a decode failure or the block size limit.
func (h *Host) buildBlock(addr host.Addr) (*host.Block, int) {
	if sb, ok := h.explicit[addr]; ok && len(sb.Instrs) > 0 {
		b := &host.Block{Start: addr, Truncated: sb.Truncated}
		for i, text := range sb.Instrs {
			b.Instrs = append(b.Instrs, host.Instr{
				Addr: addr + host.Addr(i),
				Len:  1,
				Text: text,
			})
		}
		if !sb.Truncated {
			b.Instrs[len(b.Instrs)-1].ControlTransfer = true
		}
		return b, sb.Reinstrument
	}

	b := h.decodeBlock(addr)
	if sb, ok := h.explicit[addr]; ok {
		// The session may cut a decoded block short of its natural end.
		b.Truncated = b.Truncated || sb.Truncated
		return b, sb.Reinstrument
	}
	return b, 0
}

func (h *Host) decodeBlock(addr host.Addr) *host.Block {
	b := &host.Block{Start: addr}
	next := addr
	for len(b.Instrs) < h.sess.MaxBlockInstrs {
		in, err := h.dec.Decode(next)
		if err != nil {
			return b
		}
		b.Instrs = append(b.Instrs, in)
		if in.ControlTransfer {
			return b
		}
		next = in.Next()
	}
	b.Truncated = true
	return b
}
