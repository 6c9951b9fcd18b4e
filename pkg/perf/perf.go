// Package perf tracks how long named render operations take against a time
// budget, and turns that into a discrete quality level per operation.
//
// Level 0 is full fidelity. Callers read the level when they start the work
// and degrade accordingly (decimate points, skip decorations) as it rises.
package perf

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Defaults used for zero fields of Config.
const (
	DefaultTarget = time.Second / 60
	DefaultLower  = 0.125
	DefaultUpper  = 0.25
)

// Config configures a Tracker.
type Config struct {
	// Target is the budget of keys without an explicit SetTarget.
	Target time.Duration
	// The level of a key drops when the fraction of over-budget samples in an
	// epoch is below Lower, and otherwise rises when it is above Upper.
	Lower, Upper float64
	// MaxLevel caps the level. Zero means no cap.
	MaxLevel int
	// Registerer receives the tracker's metrics. Nil disables registration.
	Registerer prometheus.Registerer
	// Labels are attached to every metric, e.g. a session ID.
	Labels prometheus.Labels
}

// Entry is a snapshot of the statistics of one key.
type Entry struct {
	Key        string        `json:"key"`
	Level      int           `json:"level"`
	Samples    int           `json:"samples"`
	OverBudget int           `json:"overBudget"`
	Target     time.Duration `json:"target"`
}

type entry struct {
	level      int
	samples    int
	overBudget int
	target     time.Duration
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mutex   sync.Mutex
	cfg     Config
	entries map[string]*entry
	now     func() time.Time

	duration *prometheus.HistogramVec
	levels   *prometheus.GaugeVec
	over     *prometheus.CounterVec
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	if cfg.Target <= 0 {
		cfg.Target = DefaultTarget
	}
	if cfg.Lower == 0 && cfg.Upper == 0 {
		cfg.Lower, cfg.Upper = DefaultLower, DefaultUpper
	}
	factory := promauto.With(cfg.Registerer)
	return &Tracker{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "aether_render_duration_seconds",
			Help:        "Duration of measured render operations",
			Buckets:     []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
			ConstLabels: cfg.Labels,
		}, []string{"key"}),
		levels: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "aether_quality_level",
			Help:        "Current quality level per render operation",
			ConstLabels: cfg.Labels,
		}, []string{"key"}),
		over: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "aether_render_over_budget_total",
			Help:        "Number of measured render operations that exceeded their budget",
			ConstLabels: cfg.Labels,
		}, []string{"key"}),
	}
}

func (t *Tracker) entry(key string) *entry {
	e, ok := t.entries[key]
	if !ok {
		e = &entry{target: t.cfg.Target}
		t.entries[key] = e
	}
	return e
}

// Measure starts measuring an operation. It returns the level the operation
// should run at and a function to call when the operation completes. Only the
// first call of the function is recorded.
func (t *Tracker) Measure(key string) (int, func()) {
	t.mutex.Lock()
	level := t.entry(key).level
	t.mutex.Unlock()
	start := t.now()
	var once sync.Once
	return level, func() {
		once.Do(func() { t.record(key, t.now().Sub(start)) })
	}
}

func (t *Tracker) record(key string, elapsed time.Duration) {
	t.mutex.Lock()
	e := t.entry(key)
	e.samples++
	over := elapsed > e.target
	if over {
		e.overBudget++
	}
	t.mutex.Unlock()
	t.duration.WithLabelValues(key).Observe(elapsed.Seconds())
	if over {
		t.over.WithLabelValues(key).Inc()
	}
}

// UpdateLevels ends an epoch. For every key sampled since the previous epoch,
// the level moves by at most one step according to the fraction of samples
// that were over budget, and the counters are reset.
func (t *Tracker) UpdateLevels() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for key, e := range t.entries {
		if e.samples == 0 {
			continue
		}
		frac := float64(e.overBudget) / float64(e.samples)
		switch {
		case frac < t.cfg.Lower:
			if e.level > 0 {
				e.level--
			}
		case frac > t.cfg.Upper:
			if t.cfg.MaxLevel <= 0 || e.level < t.cfg.MaxLevel {
				e.level++
			}
		}
		e.samples, e.overBudget = 0, 0
		t.levels.WithLabelValues(key).Set(float64(e.level))
	}
}

// Levels returns the current level of every key.
func (t *Tracker) Levels() map[string]int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	levels := make(map[string]int, len(t.entries))
	for k, e := range t.entries {
		levels[k] = e.level
	}
	return levels
}

// Level returns the current level of key, which is 0 for unknown keys.
func (t *Tracker) Level(key string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if e, ok := t.entries[key]; ok {
		return e.level
	}
	return 0
}

// Entries returns a snapshot of every key sorted by key.
func (t *Tracker) Entries() []Entry {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	entries := make([]Entry, 0, len(t.entries))
	for k, e := range t.entries {
		entries = append(entries, Entry{k, e.level, e.samples, e.overBudget, e.target})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// SetTarget sets the budget of key.
func (t *Tracker) SetTarget(key string, d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.entry(key).target = d
}

// SetThresholds replaces Lower and Upper, taking effect at the next epoch.
func (t *Tracker) SetThresholds(lower, upper float64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.cfg.Lower, t.cfg.Upper = lower, upper
}

// Forget drops the statistics of key.
func (t *Tracker) Forget(key string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.entries, key)
	t.levels.DeleteLabelValues(key)
}
