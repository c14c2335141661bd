package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"cwsweep/internal/experiment"
	"cwsweep/internal/flowstats"
	"cwsweep/internal/sweep"
)

func sampleCell(idx int, avg float64, err error) sweep.CellResult {
	rec := flowstats.Record{
		ID: 1,
		Tuple: flowstats.FiveTuple{
			SrcIP: net.IPv4(10, 1, 1, 3), DstIP: net.IPv4(10, 1, 1, 1),
			SrcPort: 49153, DstPort: 9, Protocol: flowstats.ProtoUDP,
		},
		TxBytes: 4124, TxPackets: 1, RxBytes: 4124, RxPackets: 1,
		FirstTxTime: 2, LastRxTime: 3,
	}
	c := sweep.CellResult{
		Index: idx, Total: 9, MaxExponent: 4, MinExponent: 2 + idx,
		Result: experiment.AggregateResult{
			Config:                experiment.Config{StationCount: 3, WindowMin: sweep.Bound(2 + idx), WindowMax: 16},
			AverageThroughputMbps: avg,
		},
		Err:     err,
		Elapsed: 1500 * time.Millisecond,
	}
	if err == nil {
		c.Result.Flows = []experiment.FlowThroughput{{Record: rec, ThroughputMbps: avg}}
	}
	return c
}

func TestFloatJSON(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{math.NaN(), `"NaN"`},
		{math.Inf(1), `"+Inf"`},
		{math.Inf(-1), `"-Inf"`},
		{1.5, `1.5`},
	}
	for _, c := range cases {
		b, err := json.Marshal(Float(c.in))
		if err != nil {
			t.Fatalf("marshal %v: %v", c.in, err)
		}
		if string(b) != c.want {
			t.Fatalf("marshal %v = %s, want %s", c.in, b, c.want)
		}
		var back Float
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if math.IsNaN(c.in) {
			if !math.IsNaN(float64(back)) {
				t.Fatalf("NaN round trip = %v", back)
			}
			continue
		}
		if float64(back) != c.in {
			t.Fatalf("round trip %v = %v", c.in, back)
		}
	}
	var f Float
	if err := json.Unmarshal([]byte(`"fast"`), &f); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

type captureWriter struct {
	cells []CellRow
	flows []FlowRow
	err   error
}

func (c *captureWriter) WriteCell(r CellRow) error {
	c.cells = append(c.cells, r)
	return c.err
}

func (c *captureWriter) WriteFlows(rows []FlowRow) error {
	c.flows = append(c.flows, rows...)
	return c.err
}

type cellOnlyWriter struct{ n int }

func (c *cellOnlyWriter) WriteCell(CellRow) error { c.n++; return nil }

func TestRecorder(t *testing.T) {
	ts := time.Unix(100, 0).UTC()
	cw := &captureWriter{}
	r := NewRecorder("sweep-1", cw)
	r.now = func() time.Time { return ts }

	if err := r.WriteCell(sampleCell(0, 32.98, nil)); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if err := r.WriteCell(sampleCell(1, math.NaN(), errors.New("engine boom"))); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if len(cw.cells) != 2 || len(cw.flows) != 1 {
		t.Fatalf("got %d cells %d flows, want 2 and 1", len(cw.cells), len(cw.flows))
	}
	c := cw.cells[0]
	if c.SweepID != "sweep-1" || c.Stations != 3 || c.WindowMax != 16 || c.WindowMin != 4 || c.Flows != 1 {
		t.Fatalf("unexpected cell row %+v", c)
	}
	if c.ElapsedMS != 1500 || !c.Timestamp.Equal(ts) {
		t.Fatalf("elapsed/ts = %v/%v", c.ElapsedMS, c.Timestamp)
	}
	if cw.cells[1].Error != "engine boom" {
		t.Fatalf("error = %q", cw.cells[1].Error)
	}
	f := cw.flows[0]
	if f.SrcIP != "10.1.1.3" || f.DstPort != 9 || f.FlowID != 1 || f.CellIndex != 0 {
		t.Fatalf("unexpected flow row %+v", f)
	}

	only := &cellOnlyWriter{}
	if err := NewRecorder("s", only).WriteCell(sampleCell(0, 1, nil)); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if only.n != 1 {
		t.Fatalf("cell-only writer got %d rows", only.n)
	}
}

func TestMultiWriter(t *testing.T) {
	a := &captureWriter{}
	b := &cellOnlyWriter{}
	mw := NewMultiWriter(a, nil, b)
	if mw.Len() != 2 {
		t.Fatalf("Len = %d, want 2", mw.Len())
	}
	if err := mw.WriteCell(CellRow{Index: 1}); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if err := mw.WriteFlows([]FlowRow{{FlowID: 1}}); err != nil {
		t.Fatalf("WriteFlows: %v", err)
	}
	if len(a.cells) != 1 || b.n != 1 || len(a.flows) != 1 {
		t.Fatalf("fan-out mismatch: %d %d %d", len(a.cells), b.n, len(a.flows))
	}

	failing := &captureWriter{err: errors.New("disk full")}
	if err := NewMultiWriter(failing).WriteCell(CellRow{}); err == nil {
		t.Fatalf("expected error from failing writer")
	}
}

func TestFileWriterReplay(t *testing.T) {
	dir := t.TempDir()
	cellPath := filepath.Join(dir, "cells.jsonl")
	flowPath := filepath.Join(dir, "flows.jsonl")
	fw, err := NewFileWriter(cellPath, flowPath)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	r := NewRecorder("sweep-1", fw)
	in := []sweep.CellResult{
		sampleCell(0, 32.98, nil),
		sampleCell(1, math.NaN(), errors.New("engine boom")),
		sampleCell(2, math.Inf(1), nil),
	}
	for _, c := range in {
		if err := r.WriteCell(c); err != nil {
			t.Fatalf("WriteCell: %v", err)
		}
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	flows, err := os.ReadFile(flowPath)
	if err != nil {
		t.Fatalf("read flows: %v", err)
	}
	if n := strings.Count(string(flows), "\n"); n != 2 {
		t.Fatalf("flow lines = %d, want 2", n)
	}

	got, err := ReplayFile(cellPath)
	if err != nil {
		t.Fatalf("ReplayFile: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("replayed %d cells, want %d", len(got), len(in))
	}
	if got[0].Result.AverageThroughputMbps != 32.98 || got[0].MinExponent != 2 || got[0].Result.Config.WindowMin != 4 {
		t.Fatalf("cell 0 = %+v", got[0])
	}
	if !math.IsNaN(got[1].Result.AverageThroughputMbps) || got[1].Err == nil || got[1].Err.Error() != "engine boom" {
		t.Fatalf("cell 1 = %+v", got[1])
	}
	if !math.IsInf(got[2].Result.AverageThroughputMbps, 1) {
		t.Fatalf("cell 2 avg = %v", got[2].Result.AverageThroughputMbps)
	}
	if got[0].Elapsed != 1500*time.Millisecond {
		t.Fatalf("elapsed = %v", got[0].Elapsed)
	}

	ds := sweep.BuildDatasets(got)
	if len(ds) != 1 || ds[0].Label != "cwMax : 16" || len(ds[0].Points) != 3 {
		t.Fatalf("datasets = %+v", ds)
	}
}

func TestReplayLogBadInput(t *testing.T) {
	if _, err := ReplayLog(strings.NewReader("{\"index\": 0}\nnot json\n")); err == nil {
		t.Fatalf("expected decode error")
	}
	cells, err := ReplayLog(strings.NewReader(""))
	if err != nil || len(cells) != 0 {
		t.Fatalf("empty replay = %v, %v", cells, err)
	}
	if _, err := ReplayFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	if err := w.WriteCell(CellRow{SweepID: "s", AvgThroughputMbps: Float(math.NaN())}); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if err := w.WriteFlows([]FlowRow{{FlowID: 1}}); err != nil {
		t.Fatalf("WriteFlows: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"avg_throughput_mbps":"NaN"`) {
		t.Fatalf("missing NaN in %s", out)
	}
	if strings.Contains(out, "flow_id") {
		t.Fatalf("flows printed while disabled: %s", out)
	}
	w.flows = true
	_ = w.WriteFlows([]FlowRow{{FlowID: 7}})
	if !strings.Contains(buf.String(), `"flow_id":7`) {
		t.Fatalf("flow row missing: %s", buf.String())
	}
}

func TestColorStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, ov: &Overview{SweepID: "abc", Stations: 3, MinRange: [2]int{2, 4}, MaxRange: [2]int{4, 6}, StopTime: "10s"}}
	_ = w.WriteCell(CellRow{Index: 0, Total: 9, WindowMin: 4, WindowMax: 16, AvgThroughputMbps: 12.5, Flows: 4})
	_ = w.WriteCell(CellRow{Index: 1, Total: 9, WindowMin: 8, WindowMax: 16, Error: "boom"})
	out := buf.String()
	for _, want := range []string{"Sweep Configuration:", "abc", "2..4", "[1/9]", "cwMax=16", "avg=12.5000 Mbps", "flows=4", "FAILED boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Sweep Configuration:") != 1 {
		t.Fatalf("overview printed more than once")
	}
}

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterCell(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, cellTable: "cells", flowTable: "flows"}
	r := NewRecorder("sweep-1", w)
	if err := r.WriteCell(sampleCell(0, math.NaN(), nil)); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if len(m.tables) != 2 {
		t.Fatalf("tables written = %d, want 2", len(m.tables))
	}

	cells := m.tables[0].GetRows()
	if cells.Schema[0].ColumnName != "sweep_id" || cells.Schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("unexpected first column %+v", cells.Schema[0])
	}
	if cells.Schema[8].ColumnName != "avg_throughput_mbps" || cells.Schema[8].Datatype != gpb.ColumnDataType_FLOAT64 {
		t.Fatalf("unexpected avg column %+v", cells.Schema[8])
	}
	vals := cells.Rows[0].Values
	if vals[0].GetStringValue() != "sweep-1" {
		t.Fatalf("sweep_id = %q", vals[0].GetStringValue())
	}
	if !math.IsNaN(vals[8].GetF64Value()) {
		t.Fatalf("avg = %v, want NaN", vals[8].GetF64Value())
	}
	if vals[7].GetF64Value() != 16 {
		t.Fatalf("window_max = %v", vals[7].GetF64Value())
	}

	flows := m.tables[1].GetRows()
	if len(flows.Rows) != 1 {
		t.Fatalf("flow rows = %d", len(flows.Rows))
	}
	if got := flows.Rows[0].Values[5].GetStringValue(); got != "10.1.1.3:49153" {
		t.Fatalf("src = %q", got)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, cellTable: "cells", flowTable: "flows"}
	if err := w.WriteCell(CellRow{SweepID: "s", Timestamp: time.Unix(0, 0)}); err == nil {
		t.Fatalf("expected write error")
	}
	if err := w.WriteFlows(nil); err != nil {
		t.Fatalf("empty WriteFlows: %v", err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		in      string
		host    string
		port    int
		wantErr bool
	}{
		{"localhost", "localhost", 4001, false},
		{"db.internal:5001", "db.internal", 5001, false},
		{"db:abc", "", 0, true},
	}
	for _, c := range cases {
		host, port, err := splitEndpoint(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("%s: err = %v", c.in, err)
		}
		if !c.wantErr && (host != c.host || port != c.port) {
			t.Fatalf("%s: got %s:%d", c.in, host, port)
		}
	}
}

func TestGreptimeConfigFromEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	if _, ok := GreptimeConfigFromEnv(); ok {
		t.Fatalf("expected disabled without endpoint")
	}
	t.Setenv("GREPTIMEDB_ENDPOINT", "db:4001")
	t.Setenv("GREPTIMEDB_DATABASE", "")
	t.Setenv("GREPTIMEDB_CELL_TABLE", "my_cells")
	t.Setenv("GREPTIMEDB_FLOW_TABLE", "")
	cfg, ok := GreptimeConfigFromEnv()
	if !ok {
		t.Fatalf("expected enabled")
	}
	if cfg.Database != "public" || cfg.CellTable != "my_cells" || cfg.FlowTable != "cw_sweep_flows" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
