// Package export serializes harvest results into the delivery formats:
// raw CSV, normalized CSV, and a ZIP archive bundling both.
package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/normalize"
)

// utf8BOM is written ahead of every CSV body so spreadsheet software
// detects the encoding instead of falling back to a legacy code page.
const utf8BOM = "\xef\xbb\xbf"

// Archive entry names.
const (
	RawCSVName        = "lvmh_jobs_raw.csv"
	NormalizedCSVName = "lvmh_jobs_normalized.csv"
)

// archiveStamp is the fixed modification time stamped on archive entries.
// Identical tables must produce byte-identical archives.
var archiveStamp = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// WriteRawCSV writes the raw table. The header is the sorted union of every
// field name seen across all records, so late-page fields still get a
// column and the output is stable regardless of map iteration order.
func WriteRawCSV(w io.Writer, table harvest.RawTable) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	header := rawHeader(table)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range table {
		for i, col := range header {
			row[i] = renderCell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNormalizedCSV writes the normalized table in the canonical column
// order.
func WriteNormalizedCSV(w io.Writer, table normalize.Table) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(normalize.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range table {
		if err := cw.Write(rec.Row()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteArchive writes a ZIP holding the raw and normalized CSVs. Entry
// metadata is fixed so the archive bytes depend only on the tables.
func WriteArchive(w io.Writer, raw harvest.RawTable, norm normalize.Table) error {
	zw := zip.NewWriter(w)

	if err := addEntry(zw, RawCSVName, func(ew io.Writer) error {
		return WriteRawCSV(ew, raw)
	}); err != nil {
		return err
	}
	if err := addEntry(zw, NormalizedCSVName, func(ew io.Writer) error {
		return WriteNormalizedCSV(ew, norm)
	}); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, name string, write func(io.Writer) error) error {
	ew, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveStamp,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if err := write(ew); err != nil {
		return fmt.Errorf("entry %s: %w", name, err)
	}
	return nil
}

func rawHeader(table harvest.RawTable) []string {
	seen := map[string]struct{}{}
	for _, rec := range table {
		for key := range rec {
			seen[key] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for key := range seen {
		header = append(header, key)
	}
	sort.Strings(header)
	return header
}

// renderCell projects an arbitrary raw value into a CSV cell. Strings pass
// through verbatim; absent values become empty cells; anything else becomes
// canonical JSON, deterministic because encoding/json sorts map keys.
func renderCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
