// ABOUTME: Stream is the lazy in-order iterator over every key ever put, built on an explicit frame stack
// ABOUTME: Not restartable; each CreateReadStream call gets a fresh snapshot as of its own root load

package beelog

import "context"

// frame is one stack entry during an in-order walk: the node being
// visited and a parity counter interleaving child descents and key
// emissions. i odd means "emit key at i>>1"; i even means "descend into
// child at i>>1 if the node is internal, else just advance."
type frame struct {
	node *TreeNode
	i    int
}

// Stream is a lazy, in-order, finite iterator over BlockEntries, one per
// distinct key ever put (its latest value), as of the moment its root was
// loaded. Call Next to advance, Entry to read the current item, and Err
// to check whether iteration stopped early because of a failure.
type Stream struct {
	tree  *Tree
	batch *Batch

	stack   []*frame
	entry   *BlockEntry
	err     error
	started bool
}

func newStream(t *Tree) *Stream {
	return &Stream{tree: t, batch: newBatch(t)}
}

// Next advances the stream and reports whether a new entry is available.
// It returns false both at normal end-of-stream and on error; distinguish
// the two with Err.
func (s *Stream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}

	if !s.started {
		s.started = true
		root, err := s.tree.getRoot(ctx, s.batch)
		if err != nil {
			s.err = err
			return false
		}
		if root != nil {
			if err := s.pushLeftmost(ctx, root); err != nil {
				s.err = err
				return false
			}
		}
	}

	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]

		if top.i%2 == 1 {
			keyIdx := top.i >> 1
			if keyIdx >= len(top.node.keys) {
				s.stack = s.stack[:len(s.stack)-1]
				continue
			}

			seq := top.node.keys[keyIdx].Seq
			block, err := s.batch.getBlock(ctx, seq)
			if err != nil {
				s.err = err
				return false
			}
			top.i++
			s.entry = block
			return true
		}

		childIdx := top.i >> 1
		if !top.node.isLeaf() && childIdx <= len(top.node.keys) {
			child, err := top.node.getChildNode(ctx, s.batch, childIdx)
			if err != nil {
				s.err = err
				return false
			}
			top.i++
			if err := s.pushLeftmost(ctx, child); err != nil {
				s.err = err
				return false
			}
			continue
		}

		top.i++
	}

	return false
}

// pushLeftmost pushes node and descends into its leftmost child
// repeatedly, pushing a frame at each level. On every internal frame
// pushed this way, i is advanced past the "descend child0" step so that
// frame's next action (once control returns to it) is "emit key0".
func (s *Stream) pushLeftmost(ctx context.Context, node *TreeNode) error {
	for {
		f := &frame{node: node, i: 0}
		s.stack = append(s.stack, f)

		if node.isLeaf() {
			return nil
		}

		child, err := node.getChildNode(ctx, s.batch, 0)
		if err != nil {
			return err
		}
		f.i = 1
		node = child
	}
}

// Entry returns the BlockEntry produced by the most recent Next call.
func (s *Stream) Entry() *BlockEntry {
	return s.entry
}

// Err returns the error that stopped iteration early, or nil if the
// stream ended normally or hasn't stopped yet.
func (s *Stream) Err() error {
	return s.err
}
