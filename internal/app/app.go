// Package app holds the session state and the loop that applies keyboard events and
// completed external calls to it.
package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/CageChen/cratedeck/internal/preview"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// StatusPickBusy is shown when a pick is rejected because another one is in flight.
const StatusPickBusy = "A pick is already in progress"

// Picker returns the files the user chose to mount.
type Picker interface {
	Pick(ctx context.Context) ([]vfs.FileEntry, error)
}

// Exporter delivers a snapshot of the mounted files to the user.
type Exporter interface {
	Export(entries []vfs.FileEntry) error
}

// Fetcher loads the text shown in the loaded-text pane.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Services bundles the external collaborators of the loop.
type Services struct {
	Picker   Picker
	Exporter Exporter
	Fetcher  Fetcher
}

// PickPolicy decides what happens when 'u' is pressed while a pick is in flight.
type PickPolicy string

const (
	// PickLastWriteWins lets every pick run; the one that completes last is mounted.
	PickLastWriteWins PickPolicy = "last-write-wins"
	// PickReject refuses a new pick while one is in flight.
	PickReject PickPolicy = "reject"
	// PickCancel cancels the in-flight pick and discards its result.
	PickCancel PickPolicy = "cancel"
)

// ParsePickPolicy validates a policy name.
func ParsePickPolicy(s string) (PickPolicy, error) {
	switch p := PickPolicy(s); p {
	case PickLastWriteWins, PickReject, PickCancel:
		return p, nil
	case "":
		return PickLastWriteWins, nil
	default:
		return "", fmt.Errorf("unknown pick policy %q", s)
	}
}

// Option configures an App.
type Option func(*App)

// WithPickPolicy sets the policy for overlapping picks.
func WithPickPolicy(p PickPolicy) Option {
	return func(a *App) { a.policy = p }
}

// WithFoldedFetchErrors stores fetch failures as the loaded text instead of
// reporting them in the status line.
func WithFoldedFetchErrors(fold bool) Option {
	return func(a *App) { a.foldFetchErrors = fold }
}

// App owns every mutation of State. Key events and completions of external
// calls are queued on one inbox and applied one at a time by Run.
type App struct {
	state           *State
	svc             Services
	policy          PickPolicy
	foldFetchErrors bool

	inbox   chan func(ctx context.Context)
	pending sync.WaitGroup

	// Owned by the Run goroutine.
	fetching   bool
	picks      int
	pickGen    uint64
	cancelPick context.CancelFunc
}

// New creates an App operating on state.
func New(state *State, svc Services, opts ...Option) *App {
	a := &App{
		state:  state,
		svc:    svc,
		policy: PickLastWriteWins,
		inbox:  make(chan func(ctx context.Context), 64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the state the App mutates.
func (a *App) State() *State {
	return a.state
}

// Run applies queued events until ctx is cancelled. External calls started by
// Run receive ctx.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if a.cancelPick != nil {
				a.cancelPick()
			}
			return ctx.Err()
		case fn := <-a.inbox:
			fn(ctx)
		}
	}
}

// Submit queues a key event. Events are dispatched in submission order.
func (a *App) Submit(ctx context.Context, k Key) error {
	return a.post(ctx, func(runCtx context.Context) {
		a.dispatch(runCtx, k)
	})
}

// Do runs fn on the loop and waits for it to finish.
func (a *App) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := a.post(ctx, func(context.Context) {
		fn()
		close(done)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkSourceChanged flags the mounted source as modified on disk.
func (a *App) MarkSourceChanged(ctx context.Context) error {
	return a.post(ctx, func(context.Context) {
		a.state.sourceChanged.store(true)
	})
}

func (a *App) post(ctx context.Context, fn func(ctx context.Context)) error {
	select {
	case a.inbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs work off the loop and queues the commit it returns.
func (a *App) spawn(ctx context.Context, work func() func()) {
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		commit := work()
		_ = a.post(ctx, func(context.Context) { commit() })
	}()
}

func (a *App) dispatch(ctx context.Context, k Key) {
	switch {
	case k.Code == KeyLeft:
		a.state.counter.update(func(c uint8) uint8 {
			if c == 0 {
				return 0
			}
			return c - 1
		})
	case k.Code == KeyRight:
		a.state.counter.update(func(c uint8) uint8 {
			if c == math.MaxUint8 {
				return c
			}
			return c + 1
		})
	case k.is('l'):
		a.loadText(ctx)
	case k.is('u'):
		a.pick(ctx)
	case k.is('e'):
		a.export()
	}
}

func (a *App) loadText(ctx context.Context) {
	if a.fetching || a.state.loadedText.load() != nil {
		return
	}
	a.fetching = true
	log.Printf("Fetching text")

	a.spawn(ctx, func() func() {
		text, err := a.svc.Fetcher.Fetch(ctx)
		return func() {
			a.fetching = false
			if err == nil {
				a.state.loadedText.store(&text)
				return
			}
			log.Printf("Fetch failed: %v", err)
			if a.foldFetchErrors {
				folded := fmt.Sprintf("<fetch failed: %v>", err)
				a.state.loadedText.store(&folded)
				return
			}
			a.state.status.store(fmt.Sprintf("Failed to load text: %v", err))
		}
	})
}

func (a *App) pick(ctx context.Context) {
	switch a.policy {
	case PickReject:
		if a.picks > 0 {
			a.state.status.store(StatusPickBusy)
			return
		}
	case PickCancel:
		if a.cancelPick != nil {
			a.cancelPick()
		}
	}

	a.pickGen++
	gen := a.pickGen
	pickCtx, cancel := context.WithCancel(ctx)
	a.cancelPick = cancel
	a.picks++
	log.Printf("Pick %d started", gen)

	a.spawn(ctx, func() func() {
		entries, err := a.svc.Picker.Pick(pickCtx)
		return func() {
			cancel()
			a.picks--
			if gen == a.pickGen {
				a.cancelPick = nil
			} else if a.policy == PickCancel {
				log.Printf("Pick %d superseded, result discarded", gen)
				return
			}
			if err != nil {
				log.Printf("Pick %d failed: %v", gen, err)
				a.state.status.store(fmt.Sprintf("Failed to load crate: %v", err))
				return
			}
			a.mount(vfs.FromEntries(entries))
		}
	})
}

func (a *App) mount(m *vfs.MemFS) {
	n := a.state.mount(m)
	a.state.status.store(preview.Status(n))
	a.state.sourceChanged.store(false)
	log.Printf("Mounted %d files", n)
}

func (a *App) export() {
	entries, ok := a.state.exportEntries()
	if !ok {
		return
	}
	if err := a.svc.Exporter.Export(entries); err != nil {
		log.Printf("Export failed: %v", err)
		a.state.status.store(fmt.Sprintf("Export failed: %v", err))
		return
	}
	log.Printf("Exported %d files", len(entries))
}
