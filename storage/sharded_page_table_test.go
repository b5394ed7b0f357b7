package storage

import (
	"sync"
	"testing"
)

func TestShardedPageTableBasic(t *testing.T) {
	spt := NewShardedPageTable(16)

	spt.Put(1, 7)

	frameID, exists := spt.Get(1)
	if !exists {
		t.Fatal("expected page to exist")
	}
	if frameID != 7 {
		t.Errorf("expected frame 7, got %d", frameID)
	}
}

func TestShardedPageTableDelete(t *testing.T) {
	spt := NewShardedPageTable(16)

	spt.Put(1, 0)
	spt.Delete(1)

	if _, exists := spt.Get(1); exists {
		t.Error("expected page to be deleted")
	}
}

func TestShardedPageTableSize(t *testing.T) {
	spt := NewShardedPageTable(16)

	for i := PageID(1); i <= 100; i++ {
		spt.Put(i, FrameID(i))
	}

	if spt.Size() != 100 {
		t.Errorf("expected size 100, got %d", spt.Size())
	}
}

func TestShardedPageTableConcurrent(t *testing.T) {
	spt := NewShardedPageTable(64)

	var wg sync.WaitGroup
	numGoroutines := 100
	pagesPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for j := 0; j < pagesPerGoroutine; j++ {
				pageID := PageID(offset*pagesPerGoroutine + j)
				spt.Put(pageID, FrameID(pageID))
			}
		}(i)
	}
	wg.Wait()

	expectedSize := numGoroutines * pagesPerGoroutine
	if spt.Size() != expectedSize {
		t.Errorf("expected size %d, got %d", expectedSize, spt.Size())
	}
}

func TestShardedPageTableForEach(t *testing.T) {
	spt := NewShardedPageTable(16)

	for i := PageID(1); i <= 50; i++ {
		spt.Put(i, FrameID(i))
	}

	count := 0
	spt.ForEach(func(pageID PageID, frameID FrameID) bool {
		count++
		return true
	})

	if count != 50 {
		t.Errorf("expected to iterate over 50 pages, got %d", count)
	}
}

func TestShardedPageTableForEachEarlyStop(t *testing.T) {
	spt := NewShardedPageTable(16)

	for i := PageID(1); i <= 50; i++ {
		spt.Put(i, FrameID(i))
	}

	count := 0
	spt.ForEach(func(pageID PageID, frameID FrameID) bool {
		count++
		return count < 10
	})

	if count != 10 {
		t.Errorf("expected early stop at 10, got %d", count)
	}
}

func TestShardedPageTableClear(t *testing.T) {
	spt := NewShardedPageTable(16)

	for i := PageID(1); i <= 50; i++ {
		spt.Put(i, FrameID(i))
	}

	spt.Clear()

	if spt.Size() != 0 {
		t.Errorf("expected size 0 after clear, got %d", spt.Size())
	}
}

func BenchmarkShardedPageTableGet(b *testing.B) {
	spt := NewShardedPageTable(64)

	for i := PageID(0); i < 1000; i++ {
		spt.Put(i, FrameID(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		spt.Get(PageID(i % 1000))
	}
}

func BenchmarkGlobalLockPageTableGet(b *testing.B) {
	var mu sync.RWMutex
	table := make(map[PageID]FrameID)

	for i := PageID(0); i < 1000; i++ {
		table[i] = FrameID(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pageID := PageID(i % 1000)
		mu.RLock()
		_ = table[pageID]
		mu.RUnlock()
	}
}
