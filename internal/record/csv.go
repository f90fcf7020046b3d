// Package record persists snapshots as rows of an append-only CSV file.
package record

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// DefaultPath is where records go unless configured otherwise.
const DefaultPath = "output/sensor_data.csv"

// Header is the first row of every record file.
var Header = []string{
	"date_time",
	"soil_temperature",
	"soil_moisture",
	"air_temperature",
	"air_humidity",
	"sunlight_visible",
	"sunlight_uv",
	"sunlight_ir",
	"relay",
	"relay_state_change",
}

// Row renders s in Header order. Absent values are empty cells.
func Row(s logic.Snapshot) []string {
	row := make([]string, 0, len(Header))
	row = append(row, s.Time.Format(logic.TimeLayout))
	for _, f := range s.Fields() {
		row = append(row, f.Value.String())
	}
	return append(row, strconv.FormatBool(s.RelayChanged))
}

// appendFile is the part of *os.File the recorder writes through.
type appendFile interface {
	Write(p []byte) (int, error)
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

func openAppend(path string) (appendFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CSV appends snapshots to a file.
//
// Each row is encoded in memory and written with a single write on a file
// opened O_APPEND, then synced. A write or sync failure truncates the file
// back to its previous size, so the file only ever holds whole rows. The
// file is reopened for every append; removing or rotating it between ticks
// is safe.
type CSV struct {
	path string
	open func(path string) (appendFile, error)

	mu sync.Mutex
}

// NewCSV prepares path for appending: the parent directory is created and,
// when the file is missing or empty, the header is written. Calling it again
// for an existing file leaves the file unchanged.
func NewCSV(path string) (*CSV, error) {
	c := &CSV{path: path, open: openAppend}
	if err := c.ensure(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the file being written.
func (c *CSV) Path() string { return c.path }

func (c *CSV) ensure() error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	info, err := os.Stat(c.path)
	switch {
	case err == nil && info.Size() > 0:
		return nil
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("stat %s: %w", c.path, err)
	}
	if err := c.write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Append writes s as one row.
func (c *CSV) Append(s logic.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Recreate the backing store if it was removed underneath us.
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		if err := c.ensure(); err != nil {
			return err
		}
	}
	if err := c.write(Row(s)); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (c *CSV) write(row []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	f, err := c.open(c.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return rollback(f, info.Size(), err)
	}
	if err := f.Sync(); err != nil {
		return rollback(f, info.Size(), err)
	}
	return f.Close()
}

// rollback cuts f back to size after a failed write and closes it.
func rollback(f appendFile, size int64, err error) error {
	if terr := f.Truncate(size); terr != nil {
		err = multierr.Append(err, fmt.Errorf("truncate to %d: %w", size, terr))
	}
	return multierr.Append(err, f.Close())
}
