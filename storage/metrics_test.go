package storage

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestMetricsCreation(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("Metrics should not be nil")
	}

	if m.GetCacheHits() != 0 {
		t.Errorf("Expected cache hits 0, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 0 {
		t.Errorf("Expected cache misses 0, got %d", m.GetCacheMisses())
	}
}

func TestCacheMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	if m.GetCacheHits() != 2 {
		t.Errorf("Expected 2 cache hits, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 1 {
		t.Errorf("Expected 1 cache miss, got %d", m.GetCacheMisses())
	}

	hitRate := m.GetCacheHitRate()
	expected := 2.0 / 3.0
	if hitRate < expected-0.01 || hitRate > expected+0.01 {
		t.Errorf("Expected hit rate %.2f, got %.2f", expected, hitRate)
	}
}

func TestPageEvictionMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordPageEviction()
	m.RecordPageEviction()
	m.RecordDirtyPageFlush()

	if m.GetPageEvictions() != 2 {
		t.Errorf("Expected 2 page evictions, got %d", m.GetPageEvictions())
	}
	if m.GetDirtyPageFlushes() != 1 {
		t.Errorf("Expected 1 dirty page flush, got %d", m.GetDirtyPageFlushes())
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	uptime := m.GetUptime()
	if uptime < 10*time.Millisecond {
		t.Errorf("Expected uptime >= 10ms, got %v", uptime)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()

	m.Reset()

	if m.GetCacheHits() != 0 {
		t.Errorf("Expected cache hits 0 after reset, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 0 {
		t.Errorf("Expected cache misses 0 after reset, got %d", m.GetCacheMisses())
	}
	if m.GetPageEvictions() != 0 {
		t.Errorf("Expected page evictions 0 after reset, got %d", m.GetPageEvictions())
	}
}

func TestMetricsLogging(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageFetchLatency(150 * time.Microsecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Should not panic.
	m.LogMetrics(logger)
}

func TestCacheHitRateEdgeCases(t *testing.T) {
	m := NewMetrics()

	if m.GetCacheHitRate() != 0.0 {
		t.Errorf("Expected 0.0 hit rate with no operations, got %.2f", m.GetCacheHitRate())
	}

	m.RecordCacheHit()
	m.RecordCacheHit()

	if m.GetCacheHitRate() != 1.0 {
		t.Errorf("Expected 1.0 hit rate with only hits, got %.2f", m.GetCacheHitRate())
	}

	m.Reset()
	m.RecordCacheMiss()
	m.RecordCacheMiss()

	if m.GetCacheHitRate() != 0.0 {
		t.Errorf("Expected 0.0 hit rate with only misses, got %.2f", m.GetCacheHitRate())
	}
}
