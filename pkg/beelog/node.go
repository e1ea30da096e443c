// ABOUTME: TreeNode is the in-memory view of one B-tree node, backed by lazily-resolved key and child references
// ABOUTME: insertKey/split/buildIndex implement the classical B-tree algorithm over those lazy slots

package beelog

import (
	"bytes"
	"context"

	"github.com/jtregunna/beelog/pkg/wire"
)

// TreeNode holds its owning BlockEntry (for a node fresh this put, the
// pending entry the put will append, or the block of the node it was
// split from), a sequence of key slots, a sequence
// of child slots (empty for a leaf), and whether it has been mutated
// during the current put. An original node's slots start Unresolved; a
// fresh node's slots are typically already resolved in memory.
type TreeNode struct {
	block *BlockEntry

	keys     []*KeyRef
	children []*ChildRef

	changed bool
}

// newTreeNode returns a fresh, empty, changed node. block is the pending
// entry this node will be serialized into once the current put appends;
// it may be nil.
func newTreeNode(block *BlockEntry) *TreeNode {
	return &TreeNode{block: block, changed: true}
}

func (n *TreeNode) isLeaf() bool {
	return len(n.children) == 0
}

// getKey resolves and returns the bytes of the i-th key, caching the
// result in that slot.
func (n *TreeNode) getKey(ctx context.Context, b *Batch, i int) ([]byte, error) {
	return n.keys[i].resolve(ctx, b, n.block)
}

// getChildNode resolves and returns the i-th child, caching the result in
// that slot.
func (n *TreeNode) getChildNode(ctx context.Context, b *Batch, i int) (*TreeNode, error) {
	return n.children[i].resolve(ctx, b, n.block)
}

// setKey replaces the key at position i. The caller guarantees the
// replacement compares equal to the key it replaces; no reordering is
// performed.
func (n *TreeNode) setKey(i int, ref *KeyRef) {
	n.keys[i] = ref
	n.changed = true
}

// insertKey binary-searches the current keys for kr's byte value. An equal
// key is overwritten in place. Otherwise kr is spliced at the found
// position, and if child is non-nil a fresh ChildRef wrapping it is
// spliced at the position immediately to its right. Returns whether the
// node still has fewer than maxKeys keys (i.e. does not need to split).
func (n *TreeNode) insertKey(ctx context.Context, b *Batch, kr *KeyRef, child *TreeNode, maxKeys int) (bool, error) {
	target, err := kr.resolve(ctx, b, n.block)
	if err != nil {
		return false, err
	}

	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		midKey, err := n.getKey(ctx, b, mid)
		if err != nil {
			return false, err
		}
		switch bytes.Compare(midKey, target) {
		case 0:
			n.setKey(mid, kr)
			return true, nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	n.keys = insertKeyRefAt(n.keys, lo, kr)
	if child != nil {
		n.children = insertChildRefAt(n.children, lo+1, newFreshChildRef(child))
	}
	n.changed = true

	return len(n.keys) < maxKeys, nil
}

// split extracts the median key and right half of this node into a new
// sibling. h = len(keys)/2 keys (and, for an internal node, h+1 children)
// move to the right node; the remaining last key becomes the median.
func (n *TreeNode) split() (*KeyRef, *TreeNode) {
	h := len(n.keys) / 2

	rightKeys := make([]*KeyRef, h)
	copy(rightKeys, n.keys[len(n.keys)-h:])
	n.keys = n.keys[:len(n.keys)-h]

	median := n.keys[len(n.keys)-1]
	n.keys = n.keys[:len(n.keys)-1]

	right := &TreeNode{block: n.block, changed: true, keys: rightKeys}

	if !n.isLeaf() {
		take := h + 1
		rightChildren := make([]*ChildRef, take)
		copy(rightChildren, n.children[len(n.children)-take:])
		n.children = n.children[:len(n.children)-take]
		right.children = rightChildren
	}

	n.changed = true
	return median, right
}

// buildIndex reserves a slot for this node in levels, recurses into every
// changed child, and stores the node's level at the reserved offset.
// Unchanged children (unresolved, or resolved but untouched) are written
// as their existing (seq, offset) pair without any further I/O — this is
// what makes buildIndex serialize only the changed spine. newSeq is the
// sequence number the entry currently being built will receive once
// appended.
func (n *TreeNode) buildIndex(levels *[]wire.Level, newSeq uint64) uint32 {
	offset := uint32(len(*levels))
	*levels = append(*levels, wire.Level{})

	keys := make([]uint64, len(n.keys))
	for i, kr := range n.keys {
		keys[i] = kr.Seq
	}

	var children []uint64
	for _, cr := range n.children {
		var seq uint64
		var childOffset uint32
		if cr.node != nil && cr.node.changed {
			seq = newSeq
			childOffset = cr.node.buildIndex(levels, newSeq)
		} else {
			seq = cr.Seq
			childOffset = cr.Offset
		}
		children = append(children, seq, uint64(childOffset))
	}

	(*levels)[offset] = wire.Level{Keys: keys, Children: children}
	return offset
}

func insertKeyRefAt(s []*KeyRef, i int, v *KeyRef) []*KeyRef {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertChildRefAt(s []*ChildRef, i int, v *ChildRef) []*ChildRef {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
