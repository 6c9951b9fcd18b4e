// Package server serves worker sessions over websockets, and exposes their
// trees, quality levels and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/wsconn"
	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
	"github.com/synnaxlabs/synnax-sub025/pkg/treeviz"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

var logger = logutil.GetLogger("[server] ")

// Default canvas size of a session.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Config configures a Server.
type Config struct {
	Registry *aether.Registry
	// Worker is the template for the config of every session. Its Session,
	// Conn, Registry, Canvases, Store and Registerer fields are ignored.
	Worker worker.Config
	Store  storedefs.Store
	// Canvas size of every session.
	Width, Height int
}

// Server is created with New and serves the routes of Handler.
type Server struct {
	cfg    Config
	router *mux.Router
	reg    *prometheus.Registry
	active prometheus.Gauge

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex    sync.Mutex
	sessions map[string]*session
}

type session struct {
	w       *worker.Worker
	conn    *wsconn.Conn
	started time.Time
	reg     *prometheus.Registry
}

// SessionInfo describes a running session.
type SessionInfo struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Nodes   int       `json:"nodes"`
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg := prometheus.NewRegistry()
	s := &Server{
		cfg: cfg, reg: reg, ctx: ctx, cancel: cancel,
		sessions: map[string]*session{},
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "aether_sessions_active",
			Help: "Number of running worker sessions.",
		}),
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			logger.Printf("handled %s %s in %v: %d", request.Method, request.URL, m.Duration, m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/sync").HandlerFunc(s.sync)
	r.Methods(http.MethodGet).Path("/sessions").HandlerFunc(s.listSessions)
	r.Methods(http.MethodGet).Path("/sessions/{id}/levels").HandlerFunc(s.levels)
	r.Methods(http.MethodGet).Path("/sessions/{id}/tree").HandlerFunc(s.tree)
	r.Methods(http.MethodGet).Path("/sessions/{id}/tree.svg").HandlerFunc(s.treeSVG)
	r.Methods(http.MethodGet).Path("/snapshots").HandlerFunc(s.listSnapshots)
	r.Methods(http.MethodGet).Path("/snapshots/{id}").HandlerFunc(s.getSnapshot)
	r.Methods(http.MethodGet).Path("/metrics").HandlerFunc(s.metrics)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops every session and waits for them to finish.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// Sessions lists the running sessions, oldest first.
func (s *Server) Sessions() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sessions[ids[i]].started.Before(s.sessions[ids[j]].started)
	})
	return ids
}

// SetThresholds changes the tracker thresholds of running sessions and of
// sessions started later.
func (s *Server) SetThresholds(lower, upper float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cfg.Worker.Tracker.Lower, s.cfg.Worker.Tracker.Upper = lower, upper
	for _, sess := range s.sessions {
		sess.w.Tracker().SetThresholds(lower, upper)
	}
}

func (s *Server) canvases() []render.Canvas {
	canvases := make([]render.Canvas, len(render.Variants))
	for i, v := range render.Variants {
		canvases[i] = render.NewRaster(v, s.cfg.Width, s.cfg.Height)
	}
	return canvases
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	conn, err := wsconn.Accept(w, r)
	if err != nil {
		// The upgrader has replied.
		logger.Println("upgrading:", err)
		return
	}
	id := uuid.NewString()
	sess := &session{conn: conn, started: time.Now(), reg: prometheus.NewRegistry()}

	s.mutex.Lock()
	cfg := s.cfg.Worker
	s.mutex.Unlock()
	cfg.Session, cfg.Conn, cfg.Registry = id, conn, s.cfg.Registry
	cfg.Canvases, cfg.Store, cfg.Registerer = s.canvases(), s.cfg.Store, sess.reg
	sess.w, err = worker.New(cfg)
	if err != nil {
		logger.Printf("creating worker: %v", err)
		conn.Close()
		return
	}

	s.mutex.Lock()
	s.sessions[id] = sess
	s.mutex.Unlock()
	s.active.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := sess.w.Run(s.ctx)
		logger.Printf("session %s ended: %v", id, err)
		conn.Close()
		s.mutex.Lock()
		delete(s.sessions, id)
		s.mutex.Unlock()
		s.active.Dec()
	}()
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	id := mux.Vars(r)["id"]
	s.mutex.Lock()
	sess := s.sessions[id]
	s.mutex.Unlock()
	if sess == nil {
		http.Error(w, "no such session: "+id, http.StatusNotFound)
	}
	return sess
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Println("writing response:", err)
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	infos := []SessionInfo{}
	for _, id := range s.Sessions() {
		s.mutex.Lock()
		sess := s.sessions[id]
		s.mutex.Unlock()
		if sess == nil {
			continue
		}
		nodes, err := sess.w.Snapshot(r.Context())
		if err != nil {
			// Ended in the meantime.
			continue
		}
		infos = append(infos, SessionInfo{id, sess.started, len(nodes)})
	}
	writeJSON(w, infos)
}

func (s *Server) levels(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		writeJSON(w, sess.w.Tracker().Entries())
	}
}

func (s *Server) tree(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	nodes, err := sess.w.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, nodes)
}

func (s *Server) treeSVG(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	nodes, err := sess.w.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	svg, err := treeviz.SVG(nodes, sess.w.Tracker().Levels())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeJSON(w, []storedefs.SnapshotInfo{})
		return
	}
	infos, err := s.cfg.Store.Snapshots()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []storedefs.SnapshotInfo{}
	}
	writeJSON(w, infos)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.cfg.Store == nil {
		http.Error(w, "no store", http.StatusNotFound)
		return
	}
	snap, err := s.cfg.Store.Snapshot(id)
	if err == storedefs.ErrNoSnapshot {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snap)
}

// Gathers the server metrics and the metrics of every running session.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	gatherers := prometheus.Gatherers{s.reg}
	s.mutex.Lock()
	for _, sess := range s.sessions {
		gatherers = append(gatherers, sess.reg)
	}
	s.mutex.Unlock()
	promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
