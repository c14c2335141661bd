package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONStdoutWriter prints rows as JSON lines.
type JSONStdoutWriter struct {
	out   io.Writer
	flows bool
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
// Flow rows are printed only when flows is true.
func NewJSONStdoutWriter(flows bool) *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout, flows: flows}
}

// WriteCell outputs a cell row in JSON format.
func (w *JSONStdoutWriter) WriteCell(row CellRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteFlows outputs flow rows in JSON format.
func (w *JSONStdoutWriter) WriteFlows(rows []FlowRow) error {
	if !w.flows {
		return nil
	}
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w.out, string(data))
	}
	return nil
}
