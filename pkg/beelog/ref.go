// ABOUTME: Lazy, single-assignment-on-read pointers into the log: KeyRef resolves to bytes, ChildRef to a TreeNode
// ABOUTME: Both short-circuit through the owning BlockEntry when seq matches it, avoiding a redundant log read

package beelog

import (
	"context"
	"fmt"
)

// KeyRef is a lazy pointer to a key's bytes, living in the log entry
// numbered Seq. It starts Unresolved; resolve transitions it forward to
// Resolved exactly once and caches the result.
type KeyRef struct {
	Seq      uint64
	resolved bool
	value    []byte
}

// newResolvedKeyRef returns a KeyRef that is already resolved to value,
// used for a freshly-inserted key whose bytes are already in hand (so no
// log read is ever needed to recover them).
func newResolvedKeyRef(seq uint64, value []byte) *KeyRef {
	return &KeyRef{Seq: seq, resolved: true, value: value}
}

// resolve returns the key's bytes, reading the log only the first time.
// owner is the BlockEntry of the TreeNode holding this ref, if any; when
// owner.Seq equals Seq the bytes are read directly from owner instead of
// issuing a batch.getBlock lookup.
func (r *KeyRef) resolve(ctx context.Context, b *Batch, owner *BlockEntry) ([]byte, error) {
	if r.resolved {
		return r.value, nil
	}

	if owner != nil && owner.Seq == r.Seq {
		r.value = owner.Key
		r.resolved = true
		return r.value, nil
	}

	value, err := b.tree.getKey(ctx, b, r.Seq)
	if err != nil {
		return nil, fmt.Errorf("resolve key ref seq %d: %w", r.Seq, err)
	}
	r.value = value
	r.resolved = true
	return r.value, nil
}

// ChildRef is a lazy pointer to a subtree, identified by the log entry
// containing its embedded index (Seq) and the offset into that index's
// level list (Offset). A ChildRef created for a freshly split or inserted
// node instead carries its TreeNode handle directly (Seq/Offset are
// meaningless placeholders in that case); resolve is then a no-op.
type ChildRef struct {
	Seq    uint64
	Offset uint32

	resolved bool
	node     *TreeNode
}

// newFreshChildRef returns a ChildRef already resolved to node, the slot
// spliced in next to a newly inserted key during insertKey.
func newFreshChildRef(node *TreeNode) *ChildRef {
	return &ChildRef{resolved: true, node: node}
}

// resolve returns the referenced TreeNode, reading and decoding the log
// only the first time.
func (r *ChildRef) resolve(ctx context.Context, b *Batch, owner *BlockEntry) (*TreeNode, error) {
	if r.resolved {
		return r.node, nil
	}

	var block *BlockEntry
	if owner != nil && owner.Seq == r.Seq {
		block = owner
	} else {
		var err error
		block, err = b.getBlock(ctx, r.Seq)
		if err != nil {
			return nil, fmt.Errorf("resolve child ref seq %d offset %d: %w", r.Seq, r.Offset, err)
		}
	}

	node, err := block.getTreeNode(r.Offset)
	if err != nil {
		return nil, err
	}
	r.node = node
	r.resolved = true
	return r.node, nil
}
