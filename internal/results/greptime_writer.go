package results

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"cwsweep/internal/logging"
)

const (
	defaultGreptimePort = 4001
	defaultDatabase     = "public"
	defaultCellTable    = "cw_sweep_cells"
	defaultFlowTable    = "cw_sweep_flows"
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeConfig selects the GreptimeDB endpoint and tables.
type GreptimeConfig struct {
	Endpoint  string
	Database  string
	CellTable string
	FlowTable string
}

// GreptimeConfigFromEnv reads GREPTIMEDB_ENDPOINT, GREPTIMEDB_DATABASE,
// GREPTIMEDB_CELL_TABLE and GREPTIMEDB_FLOW_TABLE. ok is false when no
// endpoint is set.
func GreptimeConfigFromEnv() (cfg GreptimeConfig, ok bool) {
	cfg = GreptimeConfig{
		Endpoint:  os.Getenv("GREPTIMEDB_ENDPOINT"),
		Database:  os.Getenv("GREPTIMEDB_DATABASE"),
		CellTable: os.Getenv("GREPTIMEDB_CELL_TABLE"),
		FlowTable: os.Getenv("GREPTIMEDB_FLOW_TABLE"),
	}
	return cfg.withDefaults(), cfg.Endpoint != ""
}

func (c GreptimeConfig) withDefaults() GreptimeConfig {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.CellTable == "" {
		c.CellTable = defaultCellTable
	}
	if c.FlowTable == "" {
		c.FlowTable = defaultFlowTable
	}
	return c
}

// splitEndpoint accepts "host" or "host:port".
func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return "", 0, fmt.Errorf("invalid GreptimeDB port %q", portStr)
	}
	return host, port, nil
}

// GreptimeDBWriter writes sweep rows to GreptimeDB via the ingester client.
// Tables are created by the server on first write.
type GreptimeDBWriter struct {
	ctx       context.Context
	client    greptimeClient
	cellTable string
	flowTable string
}

// NewGreptimeDBWriter connects to cfg.Endpoint.
func NewGreptimeDBWriter(ctx context.Context, cfg GreptimeConfig) (*GreptimeDBWriter, error) {
	cfg = cfg.withDefaults()
	host, port, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	gcfg := greptime.NewConfig(host).WithPort(port).WithDatabase(cfg.Database)
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("greptimedb client: %w", err)
	}
	return &GreptimeDBWriter{ctx: ctx, client: client, cellTable: cfg.CellTable, flowTable: cfg.FlowTable}, nil
}

// WriteCell inserts a single cell row.
func (w *GreptimeDBWriter) WriteCell(row CellRow) error {
	tbl, err := table.New(w.cellTable)
	if err != nil {
		return err
	}
	cols := []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"sweep_id", types.STRING, true},
		{"cell_index", types.INT64, true},
		{"total", types.INT64, false},
		{"stations", types.INT64, false},
		{"min_exponent", types.INT64, false},
		{"max_exponent", types.INT64, false},
		{"window_min", types.FLOAT64, false},
		{"window_max", types.FLOAT64, false},
		{"avg_throughput_mbps", types.FLOAT64, false},
		{"flows", types.INT64, false},
		{"error", types.STRING, false},
		{"elapsed_ms", types.FLOAT64, false},
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	if err := tbl.AddRow(
		row.SweepID, int64(row.Index), int64(row.Total), int64(row.Stations),
		int64(row.MinExponent), int64(row.MaxExponent),
		row.WindowMin, row.WindowMax, float64(row.AvgThroughputMbps),
		int64(row.Flows), row.Error, row.ElapsedMS, row.Timestamp,
	); err != nil {
		return err
	}
	return w.write(tbl, w.cellTable, 1)
}

// WriteFlows inserts the flow rows of one cell.
func (w *GreptimeDBWriter) WriteFlows(rows []FlowRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.flowTable)
	if err != nil {
		return err
	}
	for _, tag := range []struct {
		name string
		typ  types.ColumnType
	}{
		{"sweep_id", types.STRING},
		{"cell_index", types.INT64},
		{"flow_id", types.INT64},
	} {
		if err := tbl.AddTagColumn(tag.name, tag.typ); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name string
		typ  types.ColumnType
	}{
		{"window_min", types.FLOAT64},
		{"window_max", types.FLOAT64},
		{"src", types.STRING},
		{"dst", types.STRING},
		{"protocol", types.INT64},
		{"tx_packets", types.UINT64},
		{"tx_bytes", types.UINT64},
		{"rx_bytes", types.UINT64},
		{"first_tx_time", types.FLOAT64},
		{"last_rx_time", types.FLOAT64},
		{"throughput_mbps", types.FLOAT64},
		{"excluded", types.BOOLEAN},
	} {
		if err := tbl.AddFieldColumn(f.name, f.typ); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	for _, r := range rows {
		src := net.JoinHostPort(r.SrcIP, strconv.Itoa(int(r.SrcPort)))
		dst := net.JoinHostPort(r.DstIP, strconv.Itoa(int(r.DstPort)))
		if err := tbl.AddRow(
			r.SweepID, int64(r.CellIndex), int64(r.FlowID),
			r.WindowMin, r.WindowMax, src, dst, int64(r.Protocol),
			r.TxPackets, r.TxBytes, r.RxBytes,
			r.FirstTxTime, r.LastRxTime, float64(r.ThroughputMbps), r.Excluded,
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, w.flowTable, len(rows))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.FromContext(ctx)
	if _, err := w.client.Write(ctx, tbl); err != nil {
		log.Error("greptimedb write failed", "table", name, "err", err)
		return err
	}
	log.Debug("greptimedb rows written", "table", name, "rows", n)
	return nil
}
