package results

// MultiWriter fan-outs cell and flow rows to multiple writers.
type MultiWriter struct {
	writers []CellWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...CellWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// WriteCell sends a cell row to all writers.
func (mw *MultiWriter) WriteCell(row CellRow) error {
	for _, w := range mw.writers {
		if err := w.WriteCell(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteFlows sends flow rows to every writer that handles them.
func (mw *MultiWriter) WriteFlows(rows []FlowRow) error {
	for _, w := range mw.writers {
		fw, ok := w.(FlowWriter)
		if !ok {
			continue
		}
		if err := fw.WriteFlows(rows); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }
