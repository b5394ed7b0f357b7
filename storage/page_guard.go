package storage

// BasicPageGuard wraps a frame fetched or allocated from a BufferPoolManager
// and releases its pin exactly once, on Drop. Go has no destructors, so
// callers are expected to `defer guard.Drop()` immediately after acquiring
// one.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	frame   *Frame
	pageID  PageID
	dropped bool
}

func newBasicPageGuard(bpm *BufferPoolManager, frame *Frame, pageID PageID) *BasicPageGuard {
	return &BasicPageGuard{bpm: bpm, frame: frame, pageID: pageID}
}

// PageID returns the guarded page's id.
func (g *BasicPageGuard) PageID() PageID {
	return g.pageID
}

// Data returns the frame's backing buffer.
func (g *BasicPageGuard) Data() []byte {
	return g.frame.Data()
}

// SetDirty marks the underlying frame dirty.
func (g *BasicPageGuard) SetDirty(dirty bool) {
	g.frame.SetDirty(dirty)
}

// Drop unpins the underlying frame. Safe to call multiple times; only the
// first call has effect.
func (g *BasicPageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.bpm.UnpinPage(g.pageID, g.frame.IsDirty(), AccessUnknown)
}

// ReadPageGuard additionally holds the frame's latch for reading, acquired
// on construction and released (before unpinning) on Drop.
type ReadPageGuard struct {
	basic *BasicPageGuard
	frame *Frame
}

func newReadPageGuard(bpm *BufferPoolManager, frame *Frame, pageID PageID) *ReadPageGuard {
	frame.Latch().RLock()
	return &ReadPageGuard{basic: newBasicPageGuard(bpm, frame, pageID), frame: frame}
}

// PageID returns the guarded page's id.
func (g *ReadPageGuard) PageID() PageID {
	return g.basic.PageID()
}

// Data returns the frame's backing buffer for reading.
func (g *ReadPageGuard) Data() []byte {
	return g.basic.Data()
}

// Drop releases the read latch, then unpins the frame. Safe to call
// multiple times.
func (g *ReadPageGuard) Drop() {
	if g.basic.dropped {
		return
	}
	g.frame.Latch().RUnlock()
	g.basic.Drop()
}

// WritePageGuard additionally holds the frame's latch for writing, acquired
// on construction and released (before unpinning) on Drop. Any write
// through Data implicitly dirties the frame, so Drop always unpins with
// is_dirty = true.
type WritePageGuard struct {
	basic *BasicPageGuard
	frame *Frame
}

func newWritePageGuard(bpm *BufferPoolManager, frame *Frame, pageID PageID) *WritePageGuard {
	frame.Latch().Lock()
	frame.SetDirty(true)
	return &WritePageGuard{basic: newBasicPageGuard(bpm, frame, pageID), frame: frame}
}

// PageID returns the guarded page's id.
func (g *WritePageGuard) PageID() PageID {
	return g.basic.PageID()
}

// Data returns the frame's backing buffer for reading and writing.
func (g *WritePageGuard) Data() []byte {
	return g.basic.Data()
}

// Drop releases the write latch, then unpins the frame. Safe to call
// multiple times.
func (g *WritePageGuard) Drop() {
	if g.basic.dropped {
		return
	}
	g.frame.Latch().Unlock()
	g.basic.Drop()
}

// FetchPageBasic fetches pageID and wraps it in a BasicPageGuard.
func (bpm *BufferPoolManager) FetchPageBasic(pageID PageID) (*BasicPageGuard, error) {
	frame, err := bpm.FetchPage(pageID, AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newBasicPageGuard(bpm, frame, pageID), nil
}

// FetchPageRead fetches pageID and wraps it in a ReadPageGuard, holding the
// frame's latch for reading for the guard's lifetime.
func (bpm *BufferPoolManager) FetchPageRead(pageID PageID) (*ReadPageGuard, error) {
	frame, err := bpm.FetchPage(pageID, AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newReadPageGuard(bpm, frame, pageID), nil
}

// FetchPageWrite fetches pageID and wraps it in a WritePageGuard, holding
// the frame's latch for writing for the guard's lifetime.
func (bpm *BufferPoolManager) FetchPageWrite(pageID PageID) (*WritePageGuard, error) {
	frame, err := bpm.FetchPage(pageID, AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newWritePageGuard(bpm, frame, pageID), nil
}

// NewPageGuarded allocates a new page and wraps it in a BasicPageGuard.
func (bpm *BufferPoolManager) NewPageGuarded() (*BasicPageGuard, error) {
	frame, pageID, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	return newBasicPageGuard(bpm, frame, pageID), nil
}
