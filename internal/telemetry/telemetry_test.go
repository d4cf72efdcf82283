package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/bibleclock/internal/model"
)

func fixed(v float64) reader {
	return func(context.Context) (float64, error) {
		return v, nil
	}
}

func failing(context.Context) (float64, error) {
	return 0, errors.New("boom")
}

func TestReadPartialFailure(t *testing.T) {
	c := &Collector{cpu: fixed(12.34), memory: failing, disk: fixed(40), temperature: failing}
	got, err := c.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.CPUUsage.Available || got.CPUUsage.Value != 12.3 {
		t.Fatalf("unexpected cpu %+v", got.CPUUsage)
	}
	if got.MemoryUsage.Available || got.CPUTemperature.Available {
		t.Fatalf("failed metrics should be unavailable: %+v", got)
	}
	if !got.DiskUsage.Available || got.DiskUsage.Value != 40 {
		t.Fatalf("unexpected disk %+v", got.DiskUsage)
	}
}

func TestReadAllFailing(t *testing.T) {
	c := &Collector{cpu: failing, memory: failing, disk: failing}
	_, err := c.Read(context.Background())
	if !errors.Is(err, model.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestReadThermal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(path, []byte("48312\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := readThermal(path)
	if err != nil {
		t.Fatalf("read thermal: %v", err)
	}
	if v != 48.312 {
		t.Fatalf("expected 48.312, got %v", v)
	}
	if err := os.WriteFile(path, []byte("hot"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readThermal(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCollectorUsesThermalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(path, []byte("51000"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := NewWithPaths(t.TempDir(), path)
	v, err := c.temperature(context.Background())
	if err != nil || v != 51 {
		t.Fatalf("expected 51, got %v (%v)", v, err)
	}
}
