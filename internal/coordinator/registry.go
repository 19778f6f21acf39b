package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hemalink/coordinator/internal/model"
)

// ErrRunExists is returned when a session id is already active.
var ErrRunExists = fmt.Errorf("coordination run already active for session")

// ErrRunNotFound is returned when no active run matches a session id.
var ErrRunNotFound = fmt.Errorf("no active coordination run for session")

type managedRun struct {
	run    *Run
	cancel context.CancelFunc
}

// Registry tracks active runs, one per session id. Runs remove
// themselves when Coordinate returns, so the registry only ever holds
// live sessions.
type Registry struct {
	cfg  Config
	deps Deps

	mu   sync.Mutex
	runs map[string]*managedRun
	wg   sync.WaitGroup

	// onDone, when set, fires after a run terminates and is removed.
	onDone func(sessionID string)
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:  cfg,
		deps: deps,
		runs: make(map[string]*managedRun),
	}
}

// OnDone registers a callback invoked after each run terminates. Must
// be called before any Start.
func (g *Registry) OnDone(fn func(sessionID string)) {
	g.onDone = fn
}

// Start launches a coordination run for the session. It returns the
// run immediately; coordination proceeds on its own goroutine until a
// terminal state or Stop.
func (g *Registry) Start(ctx context.Context, sessionID string, req model.Request) (*Run, error) {
	run, err := NewRun(sessionID, req, g.cfg, g.deps)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	if _, exists := g.runs[sessionID]; exists {
		g.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrRunExists, sessionID)
	}
	g.runs[sessionID] = &managedRun{run: run, cancel: cancel}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer cancel()

		run.Coordinate(runCtx)

		g.mu.Lock()
		delete(g.runs, sessionID)
		g.mu.Unlock()

		if g.onDone != nil {
			g.onDone(sessionID)
		}
	}()

	return run, nil
}

// Stop cancels the run for the session. The run finishes asynchronously.
func (g *Registry) Stop(sessionID string) error {
	g.mu.Lock()
	m, ok := g.runs[sessionID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, sessionID)
	}
	m.cancel()
	return nil
}

// Get returns the active run for the session, if any.
func (g *Registry) Get(sessionID string) (*Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.runs[sessionID]
	if !ok {
		return nil, false
	}
	return m.run, true
}

// Snapshots lists every active run, ordered by session id.
func (g *Registry) Snapshots() []Snapshot {
	g.mu.Lock()
	snaps := make([]Snapshot, 0, len(g.runs))
	for _, m := range g.runs {
		snaps = append(snaps, m.run.Snapshot())
	}
	g.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].SessionID < snaps[j].SessionID })
	return snaps
}

// Len reports the number of active runs.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}

// StopAll cancels every run and waits for all of them to finish.
func (g *Registry) StopAll() {
	g.mu.Lock()
	for _, m := range g.runs {
		m.cancel()
	}
	g.mu.Unlock()

	g.wg.Wait()
}
