// Package results records sweep cells to stdout, files and GreptimeDB, and
// replays recorded cells.
package results

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Float is a float64 whose JSON form keeps NaN and infinities as the
// strings "NaN", "+Inf" and "-Inf".
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// CellRow is one grid cell as written to sinks.
type CellRow struct {
	SweepID           string    `json:"sweep_id"`            // TAG
	Index             int       `json:"index"`               // TAG
	Total             int       `json:"total"`               // FIELD
	Stations          int       `json:"stations"`            // FIELD
	MinExponent       int       `json:"min_exponent"`        // FIELD
	MaxExponent       int       `json:"max_exponent"`        // FIELD
	WindowMin         float64   `json:"window_min"`          // FIELD
	WindowMax         float64   `json:"window_max"`          // FIELD
	AvgThroughputMbps Float     `json:"avg_throughput_mbps"` // FIELD
	Flows             int       `json:"flows"`               // FIELD
	Error             string    `json:"error,omitempty"`     // FIELD
	ElapsedMS         float64   `json:"elapsed_ms"`          // FIELD
	Timestamp         time.Time `json:"ts"`                  // TIME INDEX
}

// FlowRow is one flow record of a cell.
type FlowRow struct {
	SweepID        string    `json:"sweep_id"`
	CellIndex      int       `json:"cell_index"`
	WindowMin      float64   `json:"window_min"`
	WindowMax      float64   `json:"window_max"`
	FlowID         uint32    `json:"flow_id"`
	SrcIP          string    `json:"src_ip"`
	DstIP          string    `json:"dst_ip"`
	SrcPort        uint16    `json:"src_port"`
	DstPort        uint16    `json:"dst_port"`
	Protocol       uint8     `json:"protocol"`
	TxPackets      uint64    `json:"tx_packets"`
	TxBytes        uint64    `json:"tx_bytes"`
	RxBytes        uint64    `json:"rx_bytes"`
	FirstTxTime    float64   `json:"first_tx_time"`
	LastRxTime     float64   `json:"last_rx_time"`
	ThroughputMbps Float     `json:"throughput_mbps"`
	Excluded       bool      `json:"excluded,omitempty"`
	Timestamp      time.Time `json:"ts"`
}
