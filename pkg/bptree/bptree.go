// Package bptree implements an in-memory B+Tree with ordered range scans.
package bptree

import (
	"cmp"
	"slices"
	"sync"
)

// DefaultOrder is the fallback branching factor if a user-supplied order is too small.
const DefaultOrder = 4

// findChildIndex determines which child pointer to follow in an internal
// node: the first child whose separator is greater than searchKey.
func findChildIndex[K cmp.Ordered](keys []K, searchKey K) int {
	idx, found := slices.BinarySearch(keys, searchKey)
	if found {
		idx++
	}
	return idx
}

// BPlusTree maps ordered keys to values. It is safe for concurrent use:
// readers share the tree, writers hold it exclusively.
type BPlusTree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	order  int
	height int
	size   int
	m      sync.RWMutex
}

// node represents both internal and leaf nodes in the B+Tree.
type node[K cmp.Ordered, V any] struct {
	isLeaf   bool
	keys     []K
	children []*node[K, V] // used if !isLeaf
	values   []V           // used if isLeaf
	parent   *node[K, V]
	next     *node[K, V] // leaf-link pointer, for range scans
}

// NewBPlusTree creates and returns a B+Tree with the given order.
// If the specified order < 3, we fall back to DefaultOrder.
func NewBPlusTree[K cmp.Ordered, V any](order int) *BPlusTree[K, V] {
	if order < 3 {
		order = DefaultOrder
	}
	return &BPlusTree[K, V]{
		root: &node[K, V]{
			isLeaf: true,
			keys:   make([]K, 0, order+1),
			values: make([]V, 0, order+1),
		},
		order:  order,
		height: 1,
	}
}

// Height is the number of levels, 1 for a tree that is a single leaf.
func (tree *BPlusTree[K, V]) Height() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.height
}

// Len is the number of keys stored.
func (tree *BPlusTree[K, V]) Len() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.size
}

// findLeaf descends to the leaf that holds, or would hold, key.
func (tree *BPlusTree[K, V]) findLeaf(key K) *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[findChildIndex(current.keys, key)]
	}
	return current
}

// Search locates the value associated with key.
func (tree *BPlusTree[K, V]) Search(key K) (V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(key)
	if i, found := slices.BinarySearch(leaf.keys, key); found {
		return leaf.values[i], true
	}
	var zero V
	return zero, false
}

// Insert adds a (key, value) pair, replacing the value of an existing key.
func (tree *BPlusTree[K, V]) Insert(key K, value V) {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	idx, found := slices.BinarySearch(leaf.keys, key)
	if found {
		leaf.values[idx] = value
		return
	}
	leaf.keys = slices.Insert(leaf.keys, idx, key)
	leaf.values = slices.Insert(leaf.values, idx, value)
	tree.size++

	if len(leaf.keys) > tree.order {
		tree.splitLeaf(leaf)
	}
}

// Delete removes key and reports whether it was present. Leaves are not
// merged; an emptied leaf stays linked until the tree is rebuilt.
func (tree *BPlusTree[K, V]) Delete(key K) bool {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	idx, found := slices.BinarySearch(leaf.keys, key)
	if !found {
		return false
	}
	leaf.keys = slices.Delete(leaf.keys, idx, idx+1)
	leaf.values = slices.Delete(leaf.values, idx, idx+1)
	tree.size--
	return true
}

// Ascend calls fn for every pair in key order until fn returns false.
// fn must not modify the tree.
func (tree *BPlusTree[K, V]) Ascend(fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.root
	for !leaf.isLeaf {
		leaf = leaf.children[0]
	}
	for ; leaf != nil; leaf = leaf.next {
		for i, k := range leaf.keys {
			if !fn(k, leaf.values[i]) {
				return
			}
		}
	}
}

// Range calls fn for every pair with lo <= key <= hi, in key order, until
// fn returns false. fn must not modify the tree.
func (tree *BPlusTree[K, V]) Range(lo, hi K, fn func(key K, value V) bool) {
	if hi < lo {
		return
	}
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(lo)
	start, _ := slices.BinarySearch(leaf.keys, lo)
	for ; leaf != nil; leaf = leaf.next {
		for i := start; i < len(leaf.keys); i++ {
			if leaf.keys[i] > hi {
				return
			}
			if !fn(leaf.keys[i], leaf.values[i]) {
				return
			}
		}
		start = 0
	}
}

// splitLeaf handles splitting a leaf node that has overflowed.
func (tree *BPlusTree[K, V]) splitLeaf(leaf *node[K, V]) {
	mid := len(leaf.keys) / 2

	newLeaf := &node[K, V]{
		isLeaf: true,
		keys:   append(make([]K, 0, tree.order+1), leaf.keys[mid:]...),
		values: append(make([]V, 0, tree.order+1), leaf.values[mid:]...),
		next:   leaf.next,
		parent: leaf.parent,
	}

	leaf.keys = leaf.keys[:mid:mid]
	leaf.values = leaf.values[:mid:mid]
	leaf.next = newLeaf

	if leaf.parent == nil {
		tree.newRoot(leaf, newLeaf.keys[0], newLeaf)
		return
	}
	tree.insertKeyInParent(leaf.parent, newLeaf.keys[0], newLeaf)
}

// newRoot grows the tree by one level above left and right.
func (tree *BPlusTree[K, V]) newRoot(left *node[K, V], key K, right *node[K, V]) {
	root := &node[K, V]{
		keys:     []K{key},
		children: []*node[K, V]{left, right},
	}
	left.parent = root
	right.parent = root
	tree.root = root
	tree.height++
}

// insertKeyInParent inserts key into parent with rightChild to its right.
func (tree *BPlusTree[K, V]) insertKeyInParent(parent *node[K, V], key K, rightChild *node[K, V]) {
	idx, _ := slices.BinarySearch(parent.keys, key)
	parent.keys = slices.Insert(parent.keys, idx, key)
	parent.children = slices.Insert(parent.children, idx+1, rightChild)
	rightChild.parent = parent

	if len(parent.keys) > tree.order {
		tree.splitInternalNode(parent)
	}
}

// splitInternalNode handles splitting an internal node that has overflowed.
// The middle key moves up to the parent.
func (tree *BPlusTree[K, V]) splitInternalNode(internal *node[K, V]) {
	mid := len(internal.keys) / 2
	splitKey := internal.keys[mid]

	newInternal := &node[K, V]{
		keys:     append([]K{}, internal.keys[mid+1:]...),
		children: append([]*node[K, V]{}, internal.children[mid+1:]...),
		parent:   internal.parent,
	}
	for _, child := range newInternal.children {
		child.parent = newInternal
	}

	internal.keys = internal.keys[:mid:mid]
	internal.children = internal.children[: mid+1 : mid+1]

	if internal.parent == nil {
		tree.newRoot(internal, splitKey, newInternal)
		return
	}
	tree.insertKeyInParent(internal.parent, splitKey, newInternal)
}
