// Package status serves live sweep progress over HTTP.
package status

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"cwsweep/internal/results"
	"cwsweep/internal/sweep"
)

//go:embed templates/index.html
var content embed.FS

// Snapshot is the progress reported by /status.
type Snapshot struct {
	SweepID   string        `json:"sweep_id"`
	Stations  int           `json:"stations"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Failures  int           `json:"failures"`
	Done      bool          `json:"done"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Tracker records cells as they complete. It implements sweep.CellWriter
// and is safe for concurrent readers.
type Tracker struct {
	mu    sync.RWMutex
	ov    results.Overview
	cells []sweep.CellResult
	snap  Snapshot
	now   func() time.Time
}

// NewTracker starts tracking the sweep described by ov.
func NewTracker(ov results.Overview) *Tracker {
	t := &Tracker{ov: ov, now: time.Now}
	t.snap = Snapshot{SweepID: ov.SweepID, Stations: ov.Stations, Started: t.now()}
	if n, k := ov.MaxRange[1]-ov.MaxRange[0]+1, ov.MinRange[1]-ov.MinRange[0]+1; n > 0 && k > 0 {
		t.snap.Total = n * k
	}
	return t
}

// WriteCell implements sweep.CellWriter.
func (t *Tracker) WriteCell(c sweep.CellResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cells = append(t.cells, c)
	t.snap.Completed++
	if c.Total > 0 {
		t.snap.Total = c.Total
	}
	if c.Err != nil {
		t.snap.Failures++
	}
	return nil
}

// Finish marks the sweep as done.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Done = true
	if err != nil {
		t.snap.Error = err.Error()
	}
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	s.Elapsed = t.now().Sub(s.Started)
	return s
}

// Rows returns the completed cells as result rows.
func (t *Tracker) Rows() []results.CellRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]results.CellRow, 0, len(t.cells))
	for _, c := range t.cells {
		rows = append(rows, results.CellRows(t.ov.SweepID, c, t.snap.Started))
	}
	return rows
}

// Datasets regroups the completed cells into plot datasets.
func (t *Tracker) Datasets() []sweep.Dataset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sweep.BuildDatasets(t.cells)
}

// Server exposes a Tracker over HTTP.
type Server struct {
	tracker *Tracker
	tpl     *template.Template
}

// NewServer creates a server for t.
func NewServer(t *Tracker) *Server {
	tpl := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"mbps": func(f results.Float) string { return formatMbps(float64(f)) },
	}).ParseFS(content, "templates/index.html"))
	return &Server{tracker: t, tpl: tpl}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/cells", s.handleCells).Methods(http.MethodGet)
	r.HandleFunc("/datasets", s.handleDatasets).Methods(http.MethodGet)
	return r
}

// Start listens on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status Snapshot
		Cells  []results.CellRow
	}{
		Status: s.tracker.Snapshot(),
		Cells:  s.tracker.Rows(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tracker.Snapshot())
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tracker.Rows())
}

// handleDatasets reports points as result floats so NaN cells encode.
func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	type point struct {
		WindowMin      float64       `json:"window_min"`
		ThroughputMbps results.Float `json:"throughput_mbps"`
	}
	type dataset struct {
		Label     string  `json:"label"`
		WindowMax float64 `json:"window_max"`
		Points    []point `json:"points"`
	}
	out := make([]dataset, 0)
	for _, ds := range s.tracker.Datasets() {
		d := dataset{Label: ds.Label, WindowMax: ds.WindowMax, Points: make([]point, 0, len(ds.Points))}
		for _, p := range ds.Points {
			d.Points = append(d.Points, point{WindowMin: p.WindowMin, ThroughputMbps: results.Float(p.ThroughputMbps)})
		}
		out = append(out, d)
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
