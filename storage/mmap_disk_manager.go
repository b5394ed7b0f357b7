package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	// mmapInitialSize is the file size a fresh mmap-backed store starts at.
	mmapInitialSize = 1024 * 1024 * 1024 // 1GB
	// mmapGrowSize is how much the file grows by once a page falls outside it.
	mmapGrowSize = 256 * 1024 * 1024 // 256MB
)

// MmapDiskManager is a DiskManager backed by a memory-mapped file
// (unix.Mmap/Munmap/Msync): ReadPage and WritePage are plain memory copies
// out of and into the mapped region, with no syscall per page. The
// mapping is grown and remapped on demand as pages are written past its
// current extent.
type MmapDiskManager struct {
	mu       sync.RWMutex
	growMu   sync.Mutex
	file     *os.File
	data     []byte
	fileSize int64
}

// NewMmapDiskManager opens (creating if necessary) fileName as a
// memory-mapped page store.
func NewMmapDiskManager(fileName string) (*MmapDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open mmap file %s: %w", fileName, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat mmap file: %w", err)
	}

	fileSize := info.Size()
	if fileSize < mmapInitialSize {
		if err := file.Truncate(mmapInitialSize); err != nil {
			file.Close()
			return nil, fmt.Errorf("grow mmap file to initial size: %w", err)
		}
		fileSize = mmapInitialSize
	}

	dm := &MmapDiskManager{file: file, fileSize: fileSize}
	if err := dm.mapRegion(); err != nil {
		file.Close()
		return nil, err
	}
	return dm, nil
}

func (dm *MmapDiskManager) mapRegion() error {
	data, err := unix.Mmap(int(dm.file.Fd()), 0, int(dm.fileSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap region: %w", err)
	}
	dm.data = data
	return nil
}

// ReadPage implements DiskManager, copying out of the mapped region.
func (dm *MmapDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("read buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	offset := int64(pageID) * PageSize
	if offset+PageSize > dm.fileSize {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, dm.data[offset:offset+PageSize])
	return nil
}

// WritePage implements DiskManager, growing and remapping the file first if
// pageID falls past its current extent.
func (dm *MmapDiskManager) WritePage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("write buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	requiredSize := (int64(pageID) + 1) * PageSize
	dm.mu.RLock()
	needsGrow := requiredSize > dm.fileSize
	dm.mu.RUnlock()

	if needsGrow {
		if err := dm.growTo(requiredSize); err != nil {
			return err
		}
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()
	offset := int64(pageID) * PageSize
	copy(dm.data[offset:offset+PageSize], buf)
	return nil
}

// growTo expands the backing file to at least size bytes and remaps it.
func (dm *MmapDiskManager) growTo(size int64) error {
	dm.growMu.Lock()
	defer dm.growMu.Unlock()

	dm.mu.Lock()
	defer dm.mu.Unlock()

	if size <= dm.fileSize {
		return nil
	}

	if dm.data != nil {
		if err := unix.Munmap(dm.data); err != nil {
			return fmt.Errorf("unmap for grow: %w", err)
		}
		dm.data = nil
	}

	newSize := dm.fileSize
	for newSize < size {
		newSize += mmapGrowSize
	}
	if err := dm.file.Truncate(newSize); err != nil {
		return fmt.Errorf("grow mmap file: %w", err)
	}
	dm.fileSize = newSize

	return dm.mapRegion()
}

// Flush msyncs the entire mapped region and fsyncs the file descriptor.
func (dm *MmapDiskManager) Flush() error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if dm.data == nil {
		return nil
	}
	if err := unix.Msync(dm.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return dm.file.Sync()
}

// Close implements DiskManager.
func (dm *MmapDiskManager) Close() error {
	if err := dm.Flush(); err != nil {
		return err
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.data != nil {
		if err := unix.Munmap(dm.data); err != nil {
			return fmt.Errorf("unmap on close: %w", err)
		}
		dm.data = nil
	}
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}

// FileSize returns the current size of the backing file.
func (dm *MmapDiskManager) FileSize() int64 {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.fileSize
}
