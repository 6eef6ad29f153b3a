package btree

import (
	"bytes"
	"fmt"
	"testing"
	"unsafe"
)

// testContext simulates in-memory pages for testing.
type testContext struct {
	tree  BTree
	ref   map[string]string // reference data
	pages map[uint64]BNode  // in-memory pages
}

func newTestContext() *testContext {
	pages := map[uint64]BNode{}
	c := &testContext{
		tree: BTree{
			get: func(ptr uint64) []byte {
				node, ok := pages[ptr]
				if !ok {
					panic("page not found")
				}
				return node
			},
			new: func(node []byte) uint64 {
				if BNode(node).nbytes() > BTREE_PAGE_SIZE {
					panic("node too large")
				}
				ptr := uint64(uintptr(unsafe.Pointer(&node[0])))
				if pages[ptr] != nil {
					panic("page already allocated")
				}
				pages[ptr] = node
				return ptr
			},
			del: func(ptr uint64) {
				if pages[ptr] == nil {
					panic("page not allocated")
				}
				delete(pages, ptr)
			},
		},
		ref:   map[string]string{},
		pages: pages,
	}
	return c
}

func (c *testContext) add(key string, val string) {
	c.tree.Insert([]byte(key), []byte(val))
	c.ref[key] = val
}

func TestBTreeBasicInsertGet(t *testing.T) {
	c := newTestContext()
	c.add("key1", "val1")

	val, ok := c.tree.Get([]byte("key1"))
	if !ok {
		t.Fatal("key1 not found")
	}
	if string(val) != "val1" {
		t.Errorf("expected val1, got %s", val)
	}
}

func TestBTreeUpdate(t *testing.T) {
	c := newTestContext()
	c.add("key1", "val1")
	c.add("key1", "val1_updated")

	val, ok := c.tree.Get([]byte("key1"))
	if !ok {
		t.Fatal("key1 not found")
	}
	if string(val) != "val1_updated" {
		t.Errorf("expected val1_updated, got %s", val)
	}
}

// TestBTreeTombstoneOverwrite mirrors how storage.Store "deletes" a key:
// by Insert-ing a tombstone payload over it rather than calling into the
// tree's own removal path (the tree has none — see btree.go's doc comment).
func TestBTreeTombstoneOverwrite(t *testing.T) {
	c := newTestContext()
	c.add("key1", "val1")
	c.add("key2", "val2")
	c.add("key3", "val3")

	const tombstone = "\x00tombstone"
	c.add("key2", tombstone)

	val, ok := c.tree.Get([]byte("key2"))
	if !ok {
		t.Fatal("key2 should still be present as a tombstone entry")
	}
	if string(val) != tombstone {
		t.Errorf("expected tombstone payload, got %s", val)
	}

	val, ok = c.tree.Get([]byte("key1"))
	if !ok || string(val) != "val1" {
		t.Error("key1 should be unaffected")
	}
}

func TestBTreeMultipleInsertions(t *testing.T) {
	c := newTestContext()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%03d", i)
		val := fmt.Sprintf("val%03d", i)
		c.add(key, val)
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%03d", i)
		expectedVal := fmt.Sprintf("val%03d", i)

		val, ok := c.tree.Get([]byte(key))
		if !ok {
			t.Errorf("key %s not found", key)
		}
		if string(val) != expectedVal {
			t.Errorf("key %s: expected %s, got %s", key, expectedVal, val)
		}
	}
}

func TestBTree1500Insertions(t *testing.T) {
	c := newTestContext()

	for i := 0; i < 1500; i++ {
		key := fmt.Sprintf("key%05d", i)
		val := fmt.Sprintf("value%05d", i)
		c.add(key, val)
	}

	for i := 0; i < 1500; i++ {
		key := fmt.Sprintf("key%05d", i)
		expectedVal := fmt.Sprintf("value%05d", i)

		val, ok := c.tree.Get([]byte(key))
		if !ok {
			t.Errorf("key %s not found", key)
			continue
		}
		if string(val) != expectedVal {
			t.Errorf("key %s: expected %s, got %s", key, expectedVal, val)
		}
	}
}

func TestBTreeEmptyTree(t *testing.T) {
	c := newTestContext()

	_, ok := c.tree.Get([]byte("key1"))
	if ok {
		t.Error("expected Get to fail on empty tree")
	}
}

func TestBTreeLargeValues(t *testing.T) {
	c := newTestContext()

	largeVal := bytes.Repeat([]byte("x"), 2000)
	c.tree.Insert([]byte("bigkey"), largeVal)

	val, ok := c.tree.Get([]byte("bigkey"))
	if !ok {
		t.Fatal("bigkey not found")
	}
	if !bytes.Equal(val, largeVal) {
		t.Error("large value mismatch")
	}
}

func TestBTreeSentinelKey(t *testing.T) {
	c := newTestContext()

	c.add("a", "val_a")

	_, ok := c.tree.Get([]byte("0"))
	if ok {
		t.Error("expected key '0' to not exist")
	}
}
