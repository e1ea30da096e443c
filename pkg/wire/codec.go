// ABOUTME: Wire codec for tree nodes and embedded block indexes using raw protobuf varint/bytes framing
// ABOUTME: Never generates or parses a .proto schema; hand-rolled framing via protowire primitives only

package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrCorrupt is returned when a byte sequence does not parse as a well-formed
// record under this package's framing rules. It never fires on a value that
// parses but violates a tree-level invariant; that's the caller's concern.
var ErrCorrupt = errors.New("wire: corrupt record")

// Field numbers. Chosen once and never renumbered; changing one changes the
// on-disk format for every existing log.
const (
	fieldNodeKey   = protowire.Number(1)
	fieldNodeValue = protowire.Number(2)
	fieldNodeIndex = protowire.Number(3)

	fieldLevelKeys     = protowire.Number(1)
	fieldLevelChildren = protowire.Number(2)

	fieldIndexLevels = protowire.Number(1)
)

// Node is the on-disk shape of a single log record's payload: the entry's
// key, an optional value, and the embedded block index rooted at this entry.
// Value and Index are independently optional so a caller can encode partial
// records (used by tests exercising malformed input) without the codec
// inventing sentinel byte sequences to mean "absent".
type Node struct {
	Key []byte

	Value    []byte
	HasValue bool

	Index    []byte
	HasIndex bool
}

// Level is one level of a YoloIndex: the separator keys at that level and
// the flattened (seq, offset) location pairs of its children. Leaf levels
// carry Keys and no Children.
type Level struct {
	Keys []uint64
	// Children is seq/offset pairs flattened: Children[2*i], Children[2*i+1].
	Children []uint64
}

// YoloIndex is the index embedded in one entry: the levels written by that
// entry, with the root at offset 0. Children are addressed purely by log
// coordinates (seq, offset), so a child may live in this entry's index or in
// an earlier entry's.
type YoloIndex struct {
	Levels []Level
}

// EncodeNode serializes n using length-delimited fields, in field-number
// order. Absent optional fields are omitted entirely rather than written as
// zero-length placeholders, so presence survives a round trip.
func EncodeNode(n Node) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldNodeKey, protowire.BytesType)
	b = protowire.AppendBytes(b, n.Key)

	if n.HasValue {
		b = protowire.AppendTag(b, fieldNodeValue, protowire.BytesType)
		b = protowire.AppendBytes(b, n.Value)
	}
	if n.HasIndex {
		b = protowire.AppendTag(b, fieldNodeIndex, protowire.BytesType)
		b = protowire.AppendBytes(b, n.Index)
	}
	return b
}

// DecodeNode parses the output of EncodeNode. Unknown field numbers are
// skipped rather than rejected, so a future field addition stays readable by
// older code.
func DecodeNode(data []byte) (Node, error) {
	var n Node
	var sawKey bool

	b := data
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return Node{}, fmt.Errorf("%w: bad tag: %v", ErrCorrupt, protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		if typ != protowire.BytesType {
			// Every field this package defines is length-delimited bytes.
			valLen := protowire.ConsumeFieldValue(num, typ, b)
			if valLen < 0 {
				return Node{}, fmt.Errorf("%w: bad field value", ErrCorrupt)
			}
			b = b[valLen:]
			continue
		}

		val, valLen := protowire.ConsumeBytes(b)
		if valLen < 0 {
			return Node{}, fmt.Errorf("%w: bad bytes field: %v", ErrCorrupt, protowire.ParseError(valLen))
		}
		b = b[valLen:]

		switch num {
		case fieldNodeKey:
			n.Key = append([]byte(nil), val...)
			sawKey = true
		case fieldNodeValue:
			n.Value = append([]byte(nil), val...)
			n.HasValue = true
		case fieldNodeIndex:
			n.Index = append([]byte(nil), val...)
			n.HasIndex = true
		}
	}

	if !sawKey {
		return Node{}, fmt.Errorf("%w: missing key field", ErrCorrupt)
	}
	return n, nil
}

// EncodeYoloIndex serializes idx as a sequence of length-delimited Level
// submessages under a single repeated field.
func EncodeYoloIndex(idx YoloIndex) []byte {
	var b []byte
	for _, lvl := range idx.Levels {
		b = protowire.AppendTag(b, fieldIndexLevels, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeLevel(lvl))
	}
	return b
}

// DecodeYoloIndex parses the output of EncodeYoloIndex.
func DecodeYoloIndex(data []byte) (YoloIndex, error) {
	var idx YoloIndex

	b := data
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return YoloIndex{}, fmt.Errorf("%w: bad tag: %v", ErrCorrupt, protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		if typ != protowire.BytesType {
			valLen := protowire.ConsumeFieldValue(num, typ, b)
			if valLen < 0 {
				return YoloIndex{}, fmt.Errorf("%w: bad field value", ErrCorrupt)
			}
			b = b[valLen:]
			continue
		}

		val, valLen := protowire.ConsumeBytes(b)
		if valLen < 0 {
			return YoloIndex{}, fmt.Errorf("%w: bad bytes field: %v", ErrCorrupt, protowire.ParseError(valLen))
		}
		b = b[valLen:]

		if num != fieldIndexLevels {
			continue
		}

		lvl, err := decodeLevel(val)
		if err != nil {
			return YoloIndex{}, err
		}
		idx.Levels = append(idx.Levels, lvl)
	}

	return idx, nil
}

func encodeLevel(lvl Level) []byte {
	var b []byte
	b = appendPackedVarints(b, fieldLevelKeys, lvl.Keys)
	b = appendPackedVarints(b, fieldLevelChildren, lvl.Children)
	return b
}

func decodeLevel(data []byte) (Level, error) {
	var lvl Level

	b := data
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return Level{}, fmt.Errorf("%w: bad level tag: %v", ErrCorrupt, protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		if typ != protowire.BytesType {
			valLen := protowire.ConsumeFieldValue(num, typ, b)
			if valLen < 0 {
				return Level{}, fmt.Errorf("%w: bad level field value", ErrCorrupt)
			}
			b = b[valLen:]
			continue
		}

		val, valLen := protowire.ConsumeBytes(b)
		if valLen < 0 {
			return Level{}, fmt.Errorf("%w: bad level bytes field: %v", ErrCorrupt, protowire.ParseError(valLen))
		}
		b = b[valLen:]

		switch num {
		case fieldLevelKeys:
			vals, err := decodePackedVarints(val)
			if err != nil {
				return Level{}, err
			}
			lvl.Keys = vals
		case fieldLevelChildren:
			vals, err := decodePackedVarints(val)
			if err != nil {
				return Level{}, err
			}
			lvl.Children = vals
		}
	}

	return lvl, nil
}

// appendPackedVarints writes vals as a single packed-repeated field, the way
// proto3 packs repeated scalar numerics. An empty slice is omitted entirely.
func appendPackedVarints(b []byte, num protowire.Number, vals []uint64) []byte {
	if len(vals) == 0 {
		return b
	}

	var payload []byte
	for _, v := range vals {
		payload = protowire.AppendVarint(payload, v)
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b
}

func decodePackedVarints(data []byte) ([]uint64, error) {
	var vals []uint64
	b := data
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: bad packed varint: %v", ErrCorrupt, protowire.ParseError(n))
		}
		vals = append(vals, v)
		b = b[n:]
	}
	return vals, nil
}
