// Package worker runs the execution side of the runtime: a single goroutine
// that owns a component tree and its render loop, and feeds them with updates
// from a connection and with frame ticks.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

// Defaults for zero fields of Config.
const (
	DefaultFrameRate = 60
	DefaultEpoch     = 30
)

// Buffer size of the channel of posted closures.
const postChSize = 64

// Config configures a Worker.
type Config struct {
	// Session identifies the worker in logs, metrics and snapshots.
	Session  string
	Conn     comms.Conn
	Registry *aether.Registry
	Canvases []render.Canvas
	// FrameRate is the number of frames per second.
	FrameRate int
	// Epoch is the number of frames between tracker level updates.
	Epoch   int
	Tracker perf.Config
	// Store, if not nil, receives a snapshot of the tree every
	// SnapshotInterval and when the worker stops.
	Store            storedefs.Store
	SnapshotInterval time.Duration

	Instrumentation *instrument.Instrumentation
	Registerer      prometheus.Registerer
}

// Worker is created with New and started with Run.
type Worker struct {
	cfg     Config
	tree    *aether.Tree
	rc      *render.Context
	tracker *perf.Tracker
	instr   instrument.Instrumentation

	postCh  chan func()
	frameCh chan time.Duration
	frames  int
}

// New creates a worker. The render context is provided at the root of the
// tree before any update is applied.
func New(cfg Config) (*Worker, error) {
	if cfg.Conn == nil {
		return nil, errors.New("worker needs a connection")
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.Epoch <= 0 {
		cfg.Epoch = DefaultEpoch
	}
	instr := instrument.New("worker")
	if cfg.Instrumentation != nil {
		instr = *cfg.Instrumentation
	}
	var labels prometheus.Labels
	if cfg.Session != "" {
		labels = prometheus.Labels{"session": cfg.Session}
	}
	trackerCfg := cfg.Tracker
	trackerCfg.Registerer, trackerCfg.Labels = cfg.Registerer, labels
	w := &Worker{
		cfg:     cfg,
		tracker: perf.New(trackerCfg),
		instr:   instr,
		postCh:  make(chan func(), postChSize),
		frameCh: make(chan time.Duration, 1),
	}
	renderInstr := instr.Child("render")
	w.rc = render.NewContext(render.ContextConfig{
		Canvases:        cfg.Canvases,
		Tracker:         w.tracker,
		Instrumentation: &renderInstr,
		Registerer:      cfg.Registerer,
		Labels:          labels,
	})
	treeInstr := instr.Child("tree")
	w.tree = aether.NewTree(aether.TreeConfig{
		Registry:        cfg.Registry,
		Sender:          cfg.Conn,
		Instrumentation: &treeInstr,
		OnDelete:        w.rc.Forget,
	})
	if err := render.Provide(w.tree.RootContext(context.Background()), w.rc); err != nil {
		return nil, err
	}
	return w, nil
}

// Tracker returns the performance tracker. It is safe for concurrent use.
func (w *Worker) Tracker() *perf.Tracker { return w.tracker }

// Render returns the render context.
func (w *Worker) Render() *render.Context { return w.rc }

// Session returns the session ID of the worker.
func (w *Worker) Session() string { return w.cfg.Session }

// Run runs the loop until ctx is done or the connection is closed. All
// updates and frames are handled on the calling goroutine, so tree nodes and
// render callbacks never run concurrently. When the loop ends, a final snapshot is
// stored and all nodes are deleted.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(w.cfg.FrameRate))
	defer ticker.Stop()
	var snapshots <-chan time.Time
	if w.cfg.Store != nil && w.cfg.SnapshotInterval > 0 {
		t := time.NewTicker(w.cfg.SnapshotInterval)
		defer t.Stop()
		snapshots = t.C
	}
	w.instr.Logger.Printf("session %s started", w.cfg.Session)
	defer w.stop()

	conn := w.cfg.Conn
	for {
		select {
		case u := <-conn.Receive():
			// Consume all pending updates before the next frame.
		consumeAll:
			for {
				w.dispatch(ctx, u)
				select {
				case u = <-conn.Receive():
				default:
					break consumeAll
				}
			}
		case f := <-w.postCh:
			f()
		case <-ticker.C:
			w.frame()
		case d := <-w.frameCh:
			ticker.Reset(d)
		case <-snapshots:
			w.snapshot()
		case <-conn.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, u aether.Update) {
	// Errors are logged by the tree; they never stop the loop.
	_ = w.tree.Dispatch(ctx, u)
}

// Runs the pending render tasks if any were requested, and ends a tracker
// epoch every Epoch frames.
func (w *Worker) frame() {
	select {
	case <-w.rc.Loop().Requested():
		w.rc.Loop().Render()
	default:
	}
	w.frames++
	if w.frames%w.cfg.Epoch == 0 {
		w.tracker.UpdateLevels()
	}
}

func (w *Worker) stop() {
	w.snapshot()
	if err := w.tree.Delete(context.Background(), nil); err != nil {
		w.instr.Logger.Printf("deleting tree: %v", err)
	}
	w.instr.Logger.Printf("session %s stopped", w.cfg.Session)
}

func (w *Worker) snapshot() {
	if w.cfg.Store == nil {
		return
	}
	err := w.cfg.Store.PutSnapshot(storedefs.Snapshot{
		Session: w.cfg.Session,
		Time:    time.Now(),
		Nodes:   w.tree.Snapshot(),
		Levels:  w.tracker.Levels(),
	})
	if err != nil {
		w.instr.Logger.Printf("storing snapshot: %v", err)
	}
}

// Post schedules f to run on the loop goroutine. It may block if many
// closures are pending.
func (w *Worker) Post(f func(t *aether.Tree)) {
	w.postCh <- func() { f(w.tree) }
}

// Do runs f on the loop goroutine and waits for it to return.
func (w *Worker) Do(ctx context.Context, f func(t *aether.Tree) error) error {
	errCh := make(chan error, 1)
	select {
	case w.postCh <- func() { errCh <- f(w.tree) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the nodes of the tree.
func (w *Worker) Snapshot(ctx context.Context) ([]aether.NodeInfo, error) {
	var infos []aether.NodeInfo
	err := w.Do(ctx, func(t *aether.Tree) error {
		infos = t.Snapshot()
		return nil
	})
	return infos, err
}

// Frame runs one frame immediately, as if the frame ticker had fired, and
// ends a tracker epoch if one is due.
func (w *Worker) Frame(ctx context.Context) error {
	return w.Do(ctx, func(*aether.Tree) error {
		w.frame()
		return nil
	})
}

// SetFrameRate changes the frame rate of a running worker.
func (w *Worker) SetFrameRate(fps int) {
	if fps <= 0 {
		return
	}
	select {
	case <-w.frameCh:
	default:
	}
	w.frameCh <- time.Second / time.Duration(fps)
}
