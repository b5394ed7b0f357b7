package storage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BufferPoolManager is the central coordinator of frames, pages, and their
// replacement policy. It hands out pinned frames for logical pages,
// fetching them from disk through a DiskScheduler when they are not
// already resident, and evicts unpinned frames via the configured
// Replacer when the pool is full.
type BufferPoolManager struct {
	poolSize  uint32
	frames    []*Frame
	pageTable *ShardedPageTable
	freeList  []FrameID

	scheduler  *DiskScheduler
	logManager LogManager
	replacer   Replacer
	metrics    *Metrics

	nextPageID atomic.Uint32

	// mu guards frames, freeList, the page table, and every Replacer call
	// (RecordAccess/SetEvictable/Evict/Remove) as a single unit for the
	// duration of one public operation, so a page-table check, frame
	// acquisition, disk I/O, and page-table mutation for one page id can
	// never interleave with the same sequence running for another caller,
	// and so a frame's pin count and its evictable flag in the replacer
	// never observably diverge.
	mu sync.Mutex
}

// NewBufferPoolManager creates a buffer pool of poolSize frames backed by
// diskManager, using an LRU-K replacer with history window k. logManager
// may be nil, in which case the write-ahead rule is skipped.
func NewBufferPoolManager(poolSize uint32, diskManager DiskManager, k int, logManager LogManager) (*BufferPoolManager, error) {
	if poolSize == 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}

	frames := make([]*Frame, poolSize)
	freeList := make([]FrameID, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		frames[i] = NewFrame()
		freeList[i] = FrameID(i)
	}

	if logManager == nil {
		logManager = NoopLogManager{}
	}

	return &BufferPoolManager{
		poolSize:   poolSize,
		frames:     frames,
		pageTable:  NewShardedPageTable(64),
		freeList:   freeList,
		scheduler:  NewDiskScheduler(diskManager),
		logManager: logManager,
		replacer:   NewLRUKReplacer(int(poolSize), k),
		metrics:    NewMetrics(),
	}, nil
}

// GetPoolSize returns the number of frames in the pool.
func (bpm *BufferPoolManager) GetPoolSize() uint32 {
	return bpm.poolSize
}

// GetMetrics returns the buffer pool's metrics tracker.
func (bpm *BufferPoolManager) GetMetrics() *Metrics {
	return bpm.metrics
}

// Shutdown stops the underlying disk scheduler's worker goroutine. No
// further operations should be issued against the pool afterward.
func (bpm *BufferPoolManager) Shutdown() {
	bpm.scheduler.Shutdown()
}

// acquireFrame returns a frame id ready to be bound to a page: either the
// front of the free list, or a frame reclaimed by evicting the replacer's
// chosen victim. The returned frame has already been reset (page table
// entry erased, dirty page flushed, metadata zeroed) when it came from
// eviction. Callers must hold bpm.mu.
func (bpm *BufferPoolManager) acquireFrame() (FrameID, error) {
	if len(bpm.freeList) > 0 {
		frameID := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, nil
	}

	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrames("acquireFrame")
	}

	frame := bpm.frames[frameID]
	if frame.IsDirty() {
		// Route through flushFrame, not a bare scheduler.WritePage, so
		// eviction's write-back honors the write-ahead rule the same way
		// FlushPage/DeletePage do.
		if err := bpm.flushFrame(frameID); err != nil {
			// The victim's data never reached disk. Put it back in the
			// replacer as evictable rather than reusing the frame and
			// losing the page; this resets its access history, which only
			// matters on this already-exceptional path.
			bpm.replacer.RecordAccess(frameID, AccessUnknown)
			bpm.replacer.SetEvictable(frameID, true)
			return 0, err
		}
		bpm.metrics.RecordDirtyPageFlush()
	}
	bpm.pageTable.Delete(frame.PageID())
	frame.reset(InvalidPageID)
	bpm.metrics.RecordPageEviction()

	return frameID, nil
}

// NewPage allocates a fresh page id, binds it to an acquired frame, and
// returns the frame pinned with a count of 1. The frame's memory is
// zeroed.
func (bpm *BufferPoolManager) NewPage() (*Frame, PageID, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, err := bpm.acquireFrame()
	if err != nil {
		return nil, InvalidPageID, err
	}

	pageID := PageID(bpm.nextPageID.Add(1) - 1)

	frame := bpm.frames[frameID]
	frame.reset(pageID)
	frame.zero()
	frame.Pin()

	bpm.pageTable.Put(pageID, frameID)

	bpm.replacer.RecordAccess(frameID, AccessUnknown)
	bpm.replacer.SetEvictable(frameID, false)

	return frame, pageID, nil
}

// FetchPage returns the frame holding pageID, pinning it. If the page is
// not resident, it is read from disk via the scheduler first. The full
// check-acquire-read-insert sequence runs under a single lock, so two
// concurrent misses on the same page id can never race each other into
// binding it to two different frames.
func (bpm *BufferPoolManager) FetchPage(pageID PageID, accessType AccessType) (*Frame, error) {
	start := time.Now()
	defer func() { bpm.metrics.RecordPageFetchLatency(time.Since(start)) }()

	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameID, found := bpm.pageTable.Get(pageID); found {
		bpm.metrics.RecordCacheHit()

		frame := bpm.frames[frameID]
		frame.Pin()

		bpm.replacer.RecordAccess(frameID, accessType)
		bpm.replacer.SetEvictable(frameID, false)

		return frame, nil
	}

	bpm.metrics.RecordCacheMiss()

	frameID, err := bpm.acquireFrame()
	if err != nil {
		return nil, err
	}

	frame := bpm.frames[frameID]
	frame.reset(pageID)

	if err := bpm.scheduler.ReadPage(pageID, frame.Data()); err != nil {
		frame.reset(InvalidPageID)
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, NewStorageError(ErrCodeDiskReadFailed, "FetchPage", "disk operation failed", err)
	}

	frame.Pin()
	bpm.pageTable.Put(pageID, frameID)

	bpm.replacer.RecordAccess(frameID, accessType)
	bpm.replacer.SetEvictable(frameID, false)

	return frame, nil
}

// UnpinPage decrements pageID's pin count, marking it dirty if isDirty is
// true. Once the pin count reaches zero the frame becomes eligible for
// eviction. Returns false if the page is not resident or was already
// unpinned.
func (bpm *BufferPoolManager) UnpinPage(pageID PageID, isDirty bool, accessType AccessType) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, found := bpm.pageTable.Get(pageID)
	if !found {
		return false
	}

	frame := bpm.frames[frameID]
	if frame.PinCount() == 0 {
		return false
	}
	if isDirty {
		frame.SetDirty(true)
	}
	remaining := frame.Unpin()

	if remaining == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}

	return true
}

// flushFrame writes frame's buffer to disk, honoring the write-ahead rule
// if a log manager is configured, and clears the dirty flag. Callers must
// hold bpm.mu.
func (bpm *BufferPoolManager) flushFrame(frameID FrameID) error {
	frame := bpm.frames[frameID]

	if frame.IsDirty() {
		if err := bpm.logManager.Flush(); err != nil {
			return fmt.Errorf("flush log manager before page write: %w", err)
		}
	}

	start := time.Now()
	pageID := frame.PageID()
	data := frame.Data()
	if err := bpm.scheduler.WritePage(pageID, data); err != nil {
		return ErrDiskOperation("FlushPage", err)
	}
	bpm.metrics.RecordPageFlushLatency(time.Since(start))

	frame.SetDirty(false)
	return nil
}

// FlushPage writes pageID's frame to disk regardless of pin state,
// returning false if the page is not resident.
func (bpm *BufferPoolManager) FlushPage(pageID PageID) (bool, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, found := bpm.pageTable.Get(pageID)
	if !found {
		return false, nil
	}

	if err := bpm.flushFrame(frameID); err != nil {
		return false, err
	}
	return true, nil
}

// FlushAllPages flushes every resident page to disk.
func (bpm *BufferPoolManager) FlushAllPages() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for frameID, frame := range bpm.frames {
		if frame.PageID() == InvalidPageID {
			continue
		}
		if err := bpm.flushFrame(FrameID(frameID)); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes pageID from the pool, returning its frame to the
// free list. Returns true if the page was not resident (nothing to do) or
// was successfully deleted. Returns false if the page is resident and
// still pinned.
func (bpm *BufferPoolManager) DeletePage(pageID PageID) (bool, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, found := bpm.pageTable.Get(pageID)
	if !found {
		return true, nil
	}

	frame := bpm.frames[frameID]
	if frame.PinCount() > 0 {
		return false, nil
	}

	if frame.IsDirty() {
		if err := bpm.flushFrame(frameID); err != nil {
			return false, err
		}
	}

	bpm.pageTable.Delete(pageID)
	frame.reset(InvalidPageID)
	bpm.replacer.Remove(frameID)

	bpm.freeList = append(bpm.freeList, frameID)

	return true, nil
}
