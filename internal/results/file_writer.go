package results

import (
	"encoding/json"
	"os"
)

// FileWriter writes cell and flow rows to JSONL files.
type FileWriter struct {
	cellFile *os.File
	flowFile *os.File
	cellEnc  *json.Encoder
	flowEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. flowPath may be empty to skip flow rows.
func NewFileWriter(cellPath, flowPath string) (*FileWriter, error) {
	cf, err := os.Create(cellPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{cellFile: cf, cellEnc: json.NewEncoder(cf)}
	if flowPath != "" {
		ff, err := os.Create(flowPath)
		if err != nil {
			cf.Close()
			return nil, err
		}
		fw.flowFile = ff
		fw.flowEnc = json.NewEncoder(ff)
	}
	return fw, nil
}

// WriteCell logs a single cell row.
func (f *FileWriter) WriteCell(row CellRow) error {
	return f.cellEnc.Encode(row)
}

// WriteFlows logs flow rows, if enabled.
func (f *FileWriter) WriteFlows(rows []FlowRow) error {
	if f.flowEnc == nil {
		return nil
	}
	for _, r := range rows {
		if err := f.flowEnc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.cellFile != nil {
		if e := f.cellFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.flowFile != nil {
		if e := f.flowFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
