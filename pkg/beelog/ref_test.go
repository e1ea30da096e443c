package beelog

import (
	"context"
	"testing"
)

func TestKeyRefResolvedShortCircuit(t *testing.T) {
	kr := newResolvedKeyRef(5, []byte("x"))
	value, err := kr.resolve(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(value) != "x" {
		t.Fatalf("resolve = %q, want x", value)
	}
}

func TestKeyRefResolveSameEntryShortCircuit(t *testing.T) {
	owner := &BlockEntry{Seq: 7, Key: []byte("owner-key")}
	kr := &KeyRef{Seq: 7}

	value, err := kr.resolve(context.Background(), nil, owner)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(value) != "owner-key" {
		t.Fatalf("resolve = %q, want owner-key", value)
	}
	if !kr.resolved {
		t.Fatalf("resolve did not mark the ref resolved")
	}
}

func TestKeyRefResolveViaBatch(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	if err := tree.Put(ctx, []byte("a"), []byte("A")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	b := newBatch(tree)
	kr := &KeyRef{Seq: 1}
	value, err := kr.resolve(ctx, b, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(value) != "a" {
		t.Fatalf("resolve = %q, want a", value)
	}

	// A second resolve must not re-read the log; it's already cached on
	// the ref itself.
	value2, err := kr.resolve(ctx, b, nil)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if string(value2) != "a" {
		t.Fatalf("second resolve = %q, want a", value2)
	}
}

func TestChildRefFreshResolvesWithoutIO(t *testing.T) {
	node := newTreeNode(nil)
	cr := newFreshChildRef(node)

	got, err := cr.resolve(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != node {
		t.Fatalf("resolve returned a different node")
	}
}
