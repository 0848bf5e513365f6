// exporter.go - Export state machine for an editing session.
package export

import (
	"context"
	"errors"
	"sync"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// ErrExportInProgress is returned when Run is called while a run is active.
var ErrExportInProgress = errors.New("export already in progress")

// State is the export lifecycle: Idle -> Exporting -> Done | Failed.
type State int

const (
	Idle State = iota
	Exporting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Exporting:
		return "exporting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exporter runs at most one export at a time for a session. Edits to the
// composition may continue during a run; the run works on the snapshot
// taken when it started.
type Exporter struct {
	packager *Packager

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	err    error
}

// NewExporter creates an idle exporter.
func NewExporter(p *Packager) *Exporter {
	return &Exporter{packager: p}
}

// Run snapshots comp and exports it. Done and Failed exporters may run
// again.
func (e *Exporter) Run(ctx context.Context, comp *carousel.Composition, opts Options, progress ProgressFunc) (*Archive, error) {
	e.mu.Lock()
	if e.state == Exporting {
		e.mu.Unlock()
		return nil, ErrExportInProgress
	}
	snap := comp.Snapshot()
	ctx, cancel := context.WithCancel(ctx)
	e.state = Exporting
	e.cancel = cancel
	e.err = nil
	e.mu.Unlock()

	a, err := e.packager.Export(ctx, snap, opts, progress)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancel = nil
	e.err = err
	if err != nil {
		e.state = Failed
		return nil, err
	}
	e.state = Done
	return a, nil
}

// Cancel aborts the active run. It reports whether a run was active.
func (e *Exporter) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// State returns the current lifecycle state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error of the last failed run.
func (e *Exporter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
