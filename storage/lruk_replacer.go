package storage

import (
	"container/list"
	"fmt"
	"sync"
)

// lruKNode tracks the bounded access history for one frame.
type lruKNode struct {
	frameID   FrameID
	history   []uint64 // last K access timestamps, oldest first
	evictable bool
}

// isInf reports whether the node has fewer than k recorded accesses, which
// gives it a backward k-distance of +infinity.
func (n *lruKNode) isInf(k int) bool {
	return len(n.history) < k
}

// oldest returns the oldest timestamp still retained in the node's history:
// the first-access time when the node is still building up to k accesses,
// or the k-th most-recent access once it has reached k. Access timestamps
// are drawn from a single global monotonic counter, so no two nodes ever
// share this value, giving the comparison below a strict total order.
func (n *lruKNode) oldest() uint64 {
	return n.history[0]
}

// moreEvictable reports whether a should be evicted before b: infinite
// backward k-distance beats any finite one, and within the same class the
// node whose retained history starts earlier (older first access, or older
// k-th-most-recent access) is more evictable. Because backward k-distance
// is current-time minus that same starting timestamp, comparing the
// timestamps directly is equivalent to comparing the distances and does
// not require knowing the current logical time.
func moreEvictable(a, b *lruKNode, k int) bool {
	aInf, bInf := a.isInf(k), b.isInf(k)
	if aInf != bInf {
		return aInf
	}
	return a.oldest() < b.oldest()
}

// LRUKReplacer implements the Jiang/Zhou LRU-K replacement policy: frames
// are ordered by the backward k-distance of their access history, with
// classical LRU as the tiebreak among frames that have fewer than k
// accesses. Eviction is driven entirely by the buffer pool; RecordAccess
// never evicts on its own.
type LRUKReplacer struct {
	mu sync.Mutex

	k                int
	numFrames        int
	currentTimestamp uint64
	currSize         int

	order *list.List // sorted most-evictable (Front) to least-evictable (Back)
	nodes map[FrameID]*list.Element
}

// NewLRUKReplacer creates a replacer tracking up to numFrames frames with a
// k-access history window.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	if k < 1 {
		k = 1
	}
	return &LRUKReplacer{
		k:         k,
		numFrames: numFrames,
		order:     list.New(),
		nodes:     make(map[FrameID]*list.Element, numFrames),
	}
}

// RecordAccess appends the current logical timestamp to frameID's history,
// creating a non-evictable tracking node on first sight.
func (r *LRUKReplacer) RecordAccess(frameID FrameID, _ AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var node *lruKNode
	if el, ok := r.nodes[frameID]; ok {
		node = el.Value.(*lruKNode)
		r.order.Remove(el)
	} else {
		node = &lruKNode{frameID: frameID}
	}

	node.history = append(node.history, r.currentTimestamp)
	if len(node.history) > r.k {
		node.history = node.history[1:]
	}
	r.currentTimestamp++

	r.nodes[frameID] = r.insertSorted(node)
}

// insertSorted walks the ordered list from the most-evictable end and
// inserts node just before the first entry it outranks, or at the back if
// it outranks none. Linear-scan insert, as the teacher's plain-LRU list
// does; an ordered map keeps the same observable contract at better
// asymptotic cost.
func (r *LRUKReplacer) insertSorted(node *lruKNode) *list.Element {
	for e := r.order.Front(); e != nil; e = e.Next() {
		if moreEvictable(node, e.Value.(*lruKNode), r.k) {
			return r.order.InsertBefore(node, e)
		}
	}
	return r.order.PushBack(node)
}

// SetEvictable flags frameID as evictable or not. A no-op if untracked.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.nodes[frameID]
	if !ok {
		return
	}
	node := el.Value.(*lruKNode)
	before := node.evictable
	node.evictable = evictable
	switch {
	case !before && evictable:
		r.currSize++
	case before && !evictable:
		r.currSize--
	}
}

// Evict removes and returns the highest-priority evictable frame.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.order.Front(); e != nil; e = e.Next() {
		node := e.Value.(*lruKNode)
		if node.evictable {
			r.order.Remove(e)
			delete(r.nodes, node.frameID)
			r.currSize--
			return node.frameID, true
		}
	}
	return 0, false
}

// Remove drops a tracked frame. Removing a tracked, non-evictable frame is
// a contract violation the buffer pool must never trigger, and panics.
func (r *LRUKReplacer) Remove(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.nodes[frameID]
	if !ok {
		return
	}
	node := el.Value.(*lruKNode)
	if !node.evictable {
		panic(fmt.Sprintf("lruk replacer: remove called on non-evictable frame %d", frameID))
	}
	r.order.Remove(el)
	delete(r.nodes, frameID)
	r.currSize--
}

// Size returns the number of tracked frames currently evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
