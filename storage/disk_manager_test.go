package storage

import (
	"os"
	"testing"
)

func TestFileDiskManagerReadUnwrittenPageIsZero(t *testing.T) {
	testFileName := "test_disk_manager_unwritten.db"
	defer os.Remove(testFileName)

	dm, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to create disk manager: %v", err)
	}
	defer dm.Close()

	buf := make([]byte, PageSize)
	if err := dm.ReadPage(5, buf); err != nil {
		t.Fatalf("expected read of unwritten page to succeed, got: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected zero-filled page, found byte %d at offset %d", b, i)
		}
	}
}

func TestFileDiskManagerReadWriteRoundTrip(t *testing.T) {
	testFileName := "test_disk_manager_rw.db"
	defer os.Remove(testFileName)

	dm, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to create disk manager: %v", err)
	}
	defer dm.Close()

	data1 := make([]byte, PageSize)
	data2 := make([]byte, PageSize)
	for i := 0; i < PageSize; i++ {
		data1[i] = byte(i % 256)
		data2[i] = byte((i + 128) % 256)
	}

	if err := dm.WritePage(0, data1); err != nil {
		t.Fatalf("failed to write page 0: %v", err)
	}
	if err := dm.WritePage(1, data2); err != nil {
		t.Fatalf("failed to write page 1: %v", err)
	}

	read1 := make([]byte, PageSize)
	read2 := make([]byte, PageSize)
	if err := dm.ReadPage(0, read1); err != nil {
		t.Fatalf("failed to read page 0: %v", err)
	}
	if err := dm.ReadPage(1, read2); err != nil {
		t.Fatalf("failed to read page 1: %v", err)
	}

	for i := 0; i < PageSize; i++ {
		if read1[i] != data1[i] {
			t.Fatalf("page 0 mismatch at byte %d: expected %d, got %d", i, data1[i], read1[i])
		}
		if read2[i] != data2[i] {
			t.Fatalf("page 1 mismatch at byte %d: expected %d, got %d", i, data2[i], read2[i])
		}
	}
}

func TestFileDiskManagerRejectsWrongSizedBuffer(t *testing.T) {
	testFileName := "test_disk_manager_badsize.db"
	defer os.Remove(testFileName)

	dm, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to create disk manager: %v", err)
	}
	defer dm.Close()

	if err := dm.WritePage(0, make([]byte, PageSize-1)); err == nil {
		t.Fatal("expected error writing undersized buffer")
	}
	if err := dm.ReadPage(0, make([]byte, PageSize+1)); err == nil {
		t.Fatal("expected error reading into oversized buffer")
	}
}

func TestFileDiskManagerWritePagesBatch(t *testing.T) {
	testFileName := "test_disk_manager_batch.db"
	defer os.Remove(testFileName)

	dm, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to create disk manager: %v", err)
	}
	defer dm.Close()

	writes := make([]PageWrite, 4)
	for i := range writes {
		buf := make([]byte, PageSize)
		buf[0] = byte(i + 1)
		writes[i] = PageWrite{PageID: PageID(i), Data: buf}
	}

	if err := dm.WritePagesBatch(writes); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}

	for i := range writes {
		buf := make([]byte, PageSize)
		if err := dm.ReadPage(PageID(i), buf); err != nil {
			t.Fatalf("failed to read page %d: %v", i, err)
		}
		if buf[0] != byte(i+1) {
			t.Fatalf("page %d mismatch: expected %d, got %d", i, i+1, buf[0])
		}
	}
}

func TestFileDiskManagerPersistsAcrossReopen(t *testing.T) {
	testFileName := "test_disk_manager_reopen.db"
	defer os.Remove(testFileName)

	dm, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to create disk manager: %v", err)
	}

	data := make([]byte, PageSize)
	data[0] = 0xAB
	if err := dm.WritePage(3, data); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("failed to close disk manager: %v", err)
	}

	dm2, err := NewFileDiskManager(testFileName)
	if err != nil {
		t.Fatalf("failed to reopen disk manager: %v", err)
	}
	defer dm2.Close()

	buf := make([]byte, PageSize)
	if err := dm2.ReadPage(3, buf); err != nil {
		t.Fatalf("failed to read page after reopen: %v", err)
	}
	if buf[0] != 0xAB {
		t.Fatalf("expected persisted byte 0xAB, got %#x", buf[0])
	}
}
