// ABOUTME: Batch is the per-operation scratchpad: a block cache plus the get/put tree-walk algorithms
// ABOUTME: Exactly one Batch is allocated per Get/Put call and discarded when it returns

package beelog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jtregunna/beelog/pkg/wire"
)

// Batch is created fresh for every Tree.Get/Tree.Put call. Its block cache
// (seq → *BlockEntry) guarantees a log entry is decoded at most once per
// operation, and that every KeyRef/ChildRef pointing into the same
// historical entry shares that one decoded index.
type Batch struct {
	tree   *Tree
	blocks map[uint64]*BlockEntry
}

func newBatch(t *Tree) *Batch {
	return &Batch{tree: t, blocks: make(map[uint64]*BlockEntry)}
}

// getBlock returns the BlockEntry for seq, serving it from the batch's
// cache when present and otherwise reading and decoding the log entry.
func (b *Batch) getBlock(ctx context.Context, seq uint64) (*BlockEntry, error) {
	if block, ok := b.blocks[seq]; ok {
		if b.tree.statsCollector != nil {
			b.tree.statsCollector.TrackCacheHit()
		}
		return block, nil
	}

	if b.tree.statsCollector != nil {
		b.tree.statsCollector.TrackCacheMiss()
	}

	raw, err := b.tree.log.Get(ctx, seq)
	if err != nil {
		return nil, fmt.Errorf("%w: read entry %d: %w", ErrIO, seq, err)
	}

	node, err := wire.DecodeNode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode entry %d: %w", ErrCorrupt, seq, err)
	}

	block := newBlockEntry(seq, node)
	b.blocks[seq] = block
	return block, nil
}

// get walks from the root, returning the BlockEntry whose key equals key,
// or nil if no such key has ever been put.
func (b *Batch) get(ctx context.Context, key []byte) (*BlockEntry, error) {
	node, err := b.tree.getRoot(ctx, b)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	for {
		i, found, err := searchNode(ctx, b, node, key)
		if err != nil {
			return nil, err
		}
		if found {
			return b.getBlock(ctx, node.keys[i].Seq)
		}
		if node.isLeaf() {
			return nil, nil
		}
		node, err = node.getChildNode(ctx, b, i)
		if err != nil {
			return nil, err
		}
	}
}

// put inserts or overwrites key with value, appending exactly one new log
// entry regardless of how many nodes on the path changed.
func (b *Batch) put(ctx context.Context, key, value []byte) error {
	seq := b.tree.log.Length()
	target := newResolvedKeyRef(seq, key)
	pending := newPendingBlockEntry(seq, key)
	pending.Value = value
	pending.HasValue = true

	maxKeys := b.tree.maxKeys()

	root, err := b.tree.getRoot(ctx, b)
	if err != nil {
		return err
	}

	if root == nil {
		leaf := newTreeNode(pending)
		if _, err := leaf.insertKey(ctx, b, target, nil, maxKeys); err != nil {
			return err
		}
		return b.append(ctx, pending, leaf)
	}

	var stack []*TreeNode
	node := root
	for {
		node.changed = true // on the spine: rewritten regardless of the outcome below

		i, found, err := searchNode(ctx, b, node, key)
		if err != nil {
			return err
		}

		if found {
			node.setKey(i, target)
			return b.append(ctx, pending, root)
		}

		if node.isLeaf() {
			notFull, err := node.insertKey(ctx, b, target, nil, maxKeys)
			if err != nil {
				return err
			}
			if notFull {
				return b.append(ctx, pending, root)
			}
			return b.propagateSplit(ctx, pending, stack, node, root, maxKeys)
		}

		stack = append(stack, node)
		node, err = node.getChildNode(ctx, b, i)
		if err != nil {
			return err
		}
	}
}

// propagateSplit pops ancestors off stack, inserting each split's median
// and right sibling into the parent above it, splitting that parent in
// turn if needed, until an ancestor absorbs the split or the stack is
// exhausted and a new root is created.
func (b *Batch) propagateSplit(ctx context.Context, pending *BlockEntry, stack []*TreeNode, splitNode, root *TreeNode, maxKeys int) error {
	current := splitNode

	for {
		median, right := current.split()

		if len(stack) == 0 {
			newRoot := newTreeNode(pending)
			newRoot.keys = []*KeyRef{median}
			newRoot.children = []*ChildRef{newFreshChildRef(current), newFreshChildRef(right)}
			return b.append(ctx, pending, newRoot)
		}

		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		notFull, err := parent.insertKey(ctx, b, median, right, maxKeys)
		if err != nil {
			return err
		}
		if notFull {
			return b.append(ctx, pending, root)
		}

		current = parent
	}
}

// append rebuilds root's changed spine into a fresh index and appends one
// log entry carrying pending's key, value, and that index.
func (b *Batch) append(ctx context.Context, pending *BlockEntry, root *TreeNode) error {
	var levels []wire.Level
	root.buildIndex(&levels, pending.Seq)

	raw := wire.EncodeNode(wire.Node{
		Key:      pending.Key,
		Value:    pending.Value,
		HasValue: true,
		Index:    wire.EncodeYoloIndex(wire.YoloIndex{Levels: levels}),
		HasIndex: true,
	})

	seq, err := b.tree.log.Append(ctx, raw)
	if err != nil {
		return fmt.Errorf("%w: append entry: %w", ErrIO, err)
	}
	if seq != pending.Seq {
		return fmt.Errorf("%w: append landed at seq %d, expected %d (single-writer discipline violated)",
			ErrInvariant, seq, pending.Seq)
	}
	return nil
}

// searchNode binary-searches node's keys for key, returning the matching
// index and found=true on equality, or the insertion position and
// found=false otherwise.
func searchNode(ctx context.Context, b *Batch, node *TreeNode, key []byte) (int, bool, error) {
	lo, hi := 0, len(node.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		midKey, err := node.getKey(ctx, b, mid)
		if err != nil {
			return 0, false, err
		}
		switch bytes.Compare(midKey, key) {
		case 0:
			return mid, true, nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}
