// Package sink appends contact form submissions to a flat CSV file.
//
// The file is opened in append mode for every call and closed after, so
// the sink holds no file descriptor between submissions. There is no
// locking and no read path; the file is write-only from this process.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// Columns is the fixed record layout, one submission per row.
var Columns = []string{"name", "email", "subject", "message"}

var ErrMissingField = errors.New("missing form field")

type Sink struct {
	path string
}

func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Path() string {
	return s.path
}

// Append writes exactly one CSV record to the sink file, creating the
// file if absent. A missing column is detected before the file is
// opened, so a bad submission never leaves a partial row behind.
func (s *Sink) Append(fields map[string]string) error {
	row := make([]string, len(Columns))
	for i, col := range Columns {
		v, ok := fields[col]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingField, col)
		}
		row[i] = v
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
