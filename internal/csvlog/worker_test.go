package csvlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/protocol"
)

func TestTimestampFormat(t *testing.T) {
	ts := time.Date(2026, 7, 31, 14, 30, 22, 123_000_000, time.UTC)
	got := timestamp(ts)
	want := "20260731-143022123"
	if got != want {
		t.Fatalf("timestamp() = %q, want %q", got, want)
	}
	if strings.Contains(got, ".") {
		t.Fatalf("timestamp() = %q, must not contain a dot", got)
	}
}

func TestFilename(t *testing.T) {
	w := New(t.TempDir(), config.LoRaConfig{
		Mode:        config.ModeRXRangeTest,
		RadioConfig: config.RadioConfig{Frequency: 868100000},
	}, 1)

	now := time.Date(2026, 7, 31, 14, 30, 22, 0, time.UTC)
	got := w.filename(now)
	want := "20260731143022-868100000-RX_RANGE_TEST.csv"
	if got != want {
		t.Fatalf("filename() = %q, want %q", got, want)
	}
}

func TestPacketCellCRCError(t *testing.T) {
	if got := packetCell(Item{CRCError: true}); got != "CRC_ERROR" {
		t.Fatalf("packetCell(CRCError) = %q, want CRC_ERROR", got)
	}
}

func TestRunWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, config.LoRaConfig{
		Mode: config.ModeTXRangeTest,
		RadioConfig: config.RadioConfig{
			Frequency:       868100000,
			Bandwidth:       7,
			CodingRate:      1,
			SpreadingFactor: 7,
			TxPower:         14,
		},
	}, 4)

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	frame := protocol.Frame{
		Header:  protocol.Header{Version: 0x33, DeviceID: 1, DataType: protocol.DataTypeBME280},
		Payload: protocol.BME280Payload{Temperature: 23, Humidity: 45, Pressure: 67},
	}
	w.In <- Item{Frame: &frame}
	w.In <- Item{CRCError: true}
	close(w.In)

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (header + 2)", len(rows))
	}
	if rows[0][0] != "Timestamp" {
		t.Fatalf("header row = %v", rows[0])
	}
	if rows[2][1] != "CRC_ERROR" {
		t.Fatalf("crc row packet cell = %q, want CRC_ERROR", rows[2][1])
	}
}
