package status

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cwsweep/internal/experiment"
	"cwsweep/internal/results"
	"cwsweep/internal/sweep"
)

func newTestTracker() *Tracker {
	tr := NewTracker(results.Overview{SweepID: "s1", Stations: 3, MinRange: [2]int{2, 3}, MaxRange: [2]int{4, 4}})
	start := time.Unix(1000, 0)
	tr.snap.Started = start
	tr.now = func() time.Time { return start.Add(3 * time.Second) }
	return tr
}

func cell(idx, eMin int, avg float64, err error) sweep.CellResult {
	return sweep.CellResult{
		Index: idx, Total: 2, MaxExponent: 4, MinExponent: eMin,
		Result: experiment.AggregateResult{
			Config:                experiment.Config{StationCount: 3, WindowMin: sweep.Bound(eMin), WindowMax: 16},
			AverageThroughputMbps: avg,
		},
		Err: err,
	}
}

func TestTrackerSnapshot(t *testing.T) {
	tr := newTestTracker()
	if s := tr.Snapshot(); s.Total != 2 || s.Completed != 0 || s.Elapsed != 3*time.Second {
		t.Fatalf("initial snapshot = %+v", s)
	}
	_ = tr.WriteCell(cell(0, 2, 12.5, nil))
	_ = tr.WriteCell(cell(1, 3, math.NaN(), errors.New("engine")))
	tr.Finish(errors.New("aborted"))
	s := tr.Snapshot()
	if s.Completed != 2 || s.Failures != 1 || !s.Done || s.Error != "aborted" {
		t.Fatalf("snapshot = %+v", s)
	}
	if rows := tr.Rows(); len(rows) != 2 || rows[1].Error != "engine" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestHandlers(t *testing.T) {
	tr := newTestTracker()
	_ = tr.WriteCell(cell(0, 2, 12.5, nil))
	_ = tr.WriteCell(cell(1, 3, math.NaN(), errors.New("engine")))
	h := NewServer(tr).Handler()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.SweepID != "s1" || snap.Completed != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/datasets", nil))
	body := w.Body.String()
	if !strings.Contains(body, `"label":"cwMax : 16"`) || !strings.Contains(body, `"throughput_mbps":"NaN"`) {
		t.Fatalf("datasets body = %s", body)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cells", nil))
	var rows []results.CellRow
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("decode cells: %v", err)
	}
	if len(rows) != 2 || !math.IsNaN(float64(rows[1].AvgThroughputMbps)) {
		t.Fatalf("rows = %+v", rows)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	page := w.Body.String()
	for _, want := range []string{"Contention window sweep", "2/2 cells", "12.500", "NaN"} {
		if !strings.Contains(page, want) {
			t.Fatalf("index missing %q:\n%s", want, page)
		}
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /status = %d, want 405", w.Code)
	}
}

func TestEmptyDatasetsIsArray(t *testing.T) {
	h := NewServer(newTestTracker()).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/datasets", nil))
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("datasets body = %s, want []", got)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewServer(newTestTracker()).Start(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
