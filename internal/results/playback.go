package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cwsweep/internal/experiment"
	"cwsweep/internal/sweep"
)

// ReplayLog decodes cell rows from r and returns them as sweep cells in
// recorded order. Flow details are not restored.
func ReplayLog(r io.Reader) ([]sweep.CellResult, error) {
	dec := json.NewDecoder(r)
	var cells []sweep.CellResult
	for {
		var row CellRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return cells, nil
			}
			return nil, fmt.Errorf("decode cell %d: %w", len(cells), err)
		}
		cells = append(cells, row.cell())
	}
}

// ReplayFile opens a JSONL results file and replays its cell rows.
func ReplayFile(path string) ([]sweep.CellResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReplayLog(f)
}

func (row CellRow) cell() sweep.CellResult {
	c := sweep.CellResult{
		Index:       row.Index,
		Total:       row.Total,
		MaxExponent: row.MaxExponent,
		MinExponent: row.MinExponent,
		Result: experiment.AggregateResult{
			Config: experiment.Config{
				StationCount: row.Stations,
				WindowMin:    row.WindowMin,
				WindowMax:    row.WindowMax,
			},
			AverageThroughputMbps: float64(row.AvgThroughputMbps),
		},
		Elapsed: time.Duration(row.ElapsedMS * float64(time.Millisecond)),
	}
	if row.Error != "" {
		c.Err = errors.New(row.Error)
	}
	return c
}
