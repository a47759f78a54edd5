package ingest

// reader.go handles the messy physical layer of export files: UTF-8 BOMs
// from Windows tooling and inconsistent per-row column counts. The CSV is
// read fully into memory; per invocation, processing is single file and
// strictly sequential.

import (
	"encoding/csv"
	"fmt"
	"io"
)

// bomSkippingReader wraps an io.Reader and skips a leading UTF-8 BOM
// (0xEF 0xBB 0xBF) if present, so BOM-prefixed exports are accepted
// transparently.
type bomSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        []byte
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{reader: r}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		head := make([]byte, 3)
		n, err := io.ReadFull(r.reader, head)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n == 0 {
			return 0, err
		}

		if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			// BOM found, drop it
		} else {
			r.buf = head[:n]
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(r.buf) > 0 {
		n := copy(p, r.buf)
		r.buf = r.buf[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// ReadRows parses one delimited export file into a header row plus RawRows.
// Rows shorter than the header simply lack the trailing fields; extra cells
// beyond the header are dropped.
func ReadRows(r io.Reader) ([]string, []RawRow, error) {
	cr := csv.NewReader(newBOMSkippingReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(RawRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
