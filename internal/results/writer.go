package results

import (
	"time"

	"cwsweep/internal/sweep"
)

// CellWriter is an interface to support different output writers.
type CellWriter interface {
	WriteCell(CellRow) error
}

// FlowWriter handles per-flow rows. Writers may implement it alongside CellWriter.
type FlowWriter interface {
	WriteFlows([]FlowRow) error
}

// Recorder converts sweep cells into rows and forwards them to a writer.
// It implements sweep.CellWriter.
type Recorder struct {
	sweepID string
	w       CellWriter
	now     func() time.Time
}

// NewRecorder tags every row with sweepID.
func NewRecorder(sweepID string, w CellWriter) *Recorder {
	return &Recorder{sweepID: sweepID, w: w, now: time.Now}
}

// WriteCell implements sweep.CellWriter.
func (r *Recorder) WriteCell(c sweep.CellResult) error {
	ts := r.now().UTC()
	row := CellRows(r.sweepID, c, ts)
	if err := r.w.WriteCell(row); err != nil {
		return err
	}
	fw, ok := r.w.(FlowWriter)
	if !ok || len(c.Result.Flows) == 0 {
		return nil
	}
	return fw.WriteFlows(FlowRows(r.sweepID, c, ts))
}

// CellRows builds the row for one cell.
func CellRows(sweepID string, c sweep.CellResult, ts time.Time) CellRow {
	row := CellRow{
		SweepID:           sweepID,
		Index:             c.Index,
		Total:             c.Total,
		Stations:          c.Result.Config.StationCount,
		MinExponent:       c.MinExponent,
		MaxExponent:       c.MaxExponent,
		WindowMin:         c.Result.Config.WindowMin,
		WindowMax:         c.Result.Config.WindowMax,
		AvgThroughputMbps: Float(c.Result.AverageThroughputMbps),
		Flows:             len(c.Result.Flows),
		ElapsedMS:         float64(c.Elapsed) / float64(time.Millisecond),
		Timestamp:         ts,
	}
	if c.Err != nil {
		row.Error = c.Err.Error()
	}
	return row
}

// FlowRows builds one row per flow of a cell.
func FlowRows(sweepID string, c sweep.CellResult, ts time.Time) []FlowRow {
	rows := make([]FlowRow, 0, len(c.Result.Flows))
	for _, f := range c.Result.Flows {
		rows = append(rows, FlowRow{
			SweepID:        sweepID,
			CellIndex:      c.Index,
			WindowMin:      c.Result.Config.WindowMin,
			WindowMax:      c.Result.Config.WindowMax,
			FlowID:         uint32(f.ID),
			SrcIP:          f.Tuple.SrcIP.String(),
			DstIP:          f.Tuple.DstIP.String(),
			SrcPort:        f.Tuple.SrcPort,
			DstPort:        f.Tuple.DstPort,
			Protocol:       f.Tuple.Protocol,
			TxPackets:      f.TxPackets,
			TxBytes:        f.TxBytes,
			RxBytes:        f.RxBytes,
			FirstTxTime:    f.FirstTxTime,
			LastRxTime:     f.LastRxTime,
			ThroughputMbps: Float(f.ThroughputMbps),
			Excluded:       f.Excluded,
			Timestamp:      ts,
		})
	}
	return rows
}
