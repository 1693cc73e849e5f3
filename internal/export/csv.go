package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// utf8BOM is prefixed to exports so Excel detects UTF-8 encoded files.
const utf8BOM = "\ufeff"

// Options controls CSV serialization behaviour.
type Options struct {
	IncludeBOM bool
}

// WriteCSV serializes header-driven rows as RFC 4180 CSV. Fields containing
// commas, quotes or newlines are quoted with doubled quote escapes by the
// encoder.
func WriteCSV(w io.Writer, headers []string, rows [][]string, opts Options) error {
	if opts.IncludeBOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Filename builds the dated export file name, e.g. "gradebook_2026-08-28.csv".
func Filename(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, at.Format("2006-01-02"))
}
