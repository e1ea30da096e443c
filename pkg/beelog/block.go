// ABOUTME: BlockEntry wraps one decoded log record and lazily inflates its embedded index on first use
// ABOUTME: Once inflated, the raw index bytes are discarded; the decoded levels are reused for the block's lifetime

package beelog

import (
	"fmt"

	"github.com/jtregunna/beelog/pkg/wire"
)

// BlockEntry is a decoded log record. It is allocated once per seq within
// a Batch's lifetime and reused for every dereference that lands on it,
// which is what lets a single decoded index serve multiple KeyRef/ChildRef
// resolutions without re-reading or re-parsing the log.
type BlockEntry struct {
	Seq uint64

	Key      []byte
	Value    []byte
	HasValue bool

	rawIndex     []byte
	decoded      bool
	decodedIndex wire.YoloIndex
}

// newBlockEntry wraps a decoded wire.Node as the BlockEntry for seq. The
// index blob stays raw until the first getTreeNode call.
func newBlockEntry(seq uint64, node wire.Node) *BlockEntry {
	return &BlockEntry{
		Seq:      seq,
		Key:      node.Key,
		Value:    node.Value,
		HasValue: node.HasValue,
		rawIndex: node.Index,
	}
}

// newPendingBlockEntry returns a BlockEntry standing in for an entry that
// has not been appended yet — the target of the put currently in flight.
// Its Key is already known in memory; it carries no index, since nothing
// ever dereferences a ChildRef into an entry that doesn't exist in the log
// yet (fresh nodes are always referenced by direct handle, not by seq).
func newPendingBlockEntry(seq uint64, key []byte) *BlockEntry {
	return &BlockEntry{Seq: seq, Key: key, decoded: true}
}

// getTreeNode inflates the stored index blob on first call, discarding the
// raw bytes, then returns a fresh TreeNode view of the level at offset.
// The same BlockEntry may be queried at different offsets over its
// lifetime; each call produces a new TreeNode.
func (b *BlockEntry) getTreeNode(offset uint32) (*TreeNode, error) {
	if !b.decoded {
		idx, err := wire.DecodeYoloIndex(b.rawIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: decode index of entry %d: %v", ErrCorrupt, b.Seq, err)
		}
		b.decodedIndex = idx
		b.rawIndex = nil
		b.decoded = true
	}

	if int(offset) >= len(b.decodedIndex.Levels) {
		return nil, fmt.Errorf("%w: offset %d out of range for entry %d (%d levels)",
			ErrInvariant, offset, b.Seq, len(b.decodedIndex.Levels))
	}
	level := b.decodedIndex.Levels[offset]

	if len(level.Children) > 0 && len(level.Children) != 2*(len(level.Keys)+1) {
		return nil, fmt.Errorf("%w: entry %d offset %d: %d keys but %d child slots",
			ErrCorrupt, b.Seq, offset, len(level.Keys), len(level.Children)/2)
	}

	keys := make([]*KeyRef, len(level.Keys))
	for i, seq := range level.Keys {
		keys[i] = &KeyRef{Seq: seq}
	}

	var children []*ChildRef
	if len(level.Children) > 0 {
		children = make([]*ChildRef, 0, len(level.Children)/2)
		for i := 0; i < len(level.Children); i += 2 {
			children = append(children, &ChildRef{
				Seq:    level.Children[i],
				Offset: uint32(level.Children[i+1]),
			})
		}
	}

	return &TreeNode{block: b, keys: keys, children: children}, nil
}
