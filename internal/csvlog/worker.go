// Package csvlog appends every range-test frame (or CRC-error marker) to a
// timestamped CSV artifact. Grounded on the original's csv_writer.rs
// (filename/header/row shape) using the encoding/csv stdlib writer, the way
// the teacher favors stdlib for on-disk formats it doesn't otherwise need a
// library for.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/protocol"
)

var header = []string{"Timestamp", "Packet", "Bandwidth", "Coding rate", "Spreading factor", "TX power"}

// Item is one entry of the CSV queue: either a frame or a CRC-error marker.
type Item struct {
	Frame    *protocol.Frame
	CRCError bool
}

// Worker owns the output file for one run.
type Worker struct {
	dir    string
	radio  config.LoRaConfig
	In     chan Item
	opened time.Time
}

// New builds a worker with a bounded input queue. dir is the directory the
// CSV file lands in; it's created on first use if missing.
func New(dir string, radio config.LoRaConfig, queueDepth int) *Worker {
	return &Worker{dir: dir, radio: radio, In: make(chan Item, queueDepth)}
}

func (w *Worker) filename(now time.Time) string {
	return fmt.Sprintf("%s-%d-%s.csv", now.Format("20060102150405"), w.radio.RadioConfig.Frequency, w.radio.Mode)
}

func (w *Worker) open() (*csv.Writer, *os.File, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("csvlog: create directory %s: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, w.filename(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvlog: create %s: %w", path, err)
	}
	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("csvlog: write header: %w", err)
	}
	writer.Flush()
	return writer, f, nil
}

// Run opens the output file and drains In until it's closed, appending one
// row per item with a millisecond-precision timestamp and the run's radio
// parameters.
func (w *Worker) Run() error {
	writer, f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	for item := range w.In {
		row := []string{
			timestamp(time.Now()),
			packetCell(item),
			fmt.Sprintf("%d", w.radio.RadioConfig.Bandwidth),
			fmt.Sprintf("%d", w.radio.RadioConfig.CodingRate),
			fmt.Sprintf("%d", w.radio.RadioConfig.SpreadingFactor),
			fmt.Sprintf("%d", w.radio.RadioConfig.TxPower),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csvlog: write row: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("csvlog: flush: %w", err)
		}
	}
	return nil
}

// timestamp renders YYYYMMDD-HHMMSSmmm, millisecond precision.
func timestamp(t time.Time) string {
	return fmt.Sprintf("%s%03d", t.Format("20060102-150405"), t.Nanosecond()/1_000_000)
}

func packetCell(item Item) string {
	if item.CRCError {
		return "CRC_ERROR"
	}
	return item.Frame.String()
}
