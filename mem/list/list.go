// Package list implements a circular doubly linked list whose links are
// indices into a caller-owned arena instead of pointers.
//
// The list never allocates. Nodes are embedded in the records they link
// (page descriptors, chunk tables) and reached through a Nodes accessor, so the
// same List type threads free pages and free chunks alike.
//
// A node that is not on any list links to itself. Every node must be
// initialized with Init before it is pushed or removed.
package list

// Index addresses a node inside its arena.
type Index int32

// Nil is the sentinel index for "no node".
const Nil Index = -1

// Node holds the links of one list element.
type Node struct {
	prev Index
	next Index
}

// Init unlinks the node by pointing both links at itself.
func (n *Node) Init(self Index) {
	n.prev = self
	n.next = self
}

// Next returns the index of the following node.
func (n *Node) Next() Index { return n.next }

// Prev returns the index of the preceding node.
func (n *Node) Prev() Index { return n.prev }

// Nodes resolves an index to its node.
type Nodes func(Index) *Node

// List is the head of a list. The zero value is an empty list.
type List struct {
	head   Index
	length int
}

// Len returns the number of linked nodes.
func (l *List) Len() int { return l.length }

// Empty reports whether the list has no nodes.
func (l *List) Empty() bool { return l.length == 0 }

// Front returns the first node or Nil.
func (l *List) Front() Index {
	if l.length == 0 {
		return Nil
	}
	return l.head
}

// Back returns the last node or Nil.
func (l *List) Back(nodes Nodes) Index {
	if l.length == 0 {
		return Nil
	}
	return nodes(l.head).prev
}

// PushFront links node i at the head of the list. i must not be linked.
func (l *List) PushFront(nodes Nodes, i Index) {
	l.insertTail(nodes, i)
	l.head = i
}

// PushBack links node i at the tail of the list. i must not be linked.
func (l *List) PushBack(nodes Nodes, i Index) {
	l.insertTail(nodes, i)
}

func (l *List) insertTail(nodes Nodes, i Index) {
	n := nodes(i)
	if l.length == 0 {
		n.Init(i)
		l.head = i
		l.length = 1
		return
	}

	h := nodes(l.head)
	tail := h.prev
	n.prev = tail
	n.next = l.head
	nodes(tail).next = i
	h.prev = i
	l.length++
}

// InsertBefore links node i directly in front of the linked node at. When at
// is the head, i becomes the new head. i must not be linked.
func (l *List) InsertBefore(nodes Nodes, i, at Index) {
	if at == l.head {
		l.PushFront(nodes, i)
		return
	}
	n, next := nodes(i), nodes(at)
	n.prev = next.prev
	n.next = at
	nodes(next.prev).next = i
	next.prev = i
	l.length++
}

// PopFront unlinks and returns the first node, or Nil if the list is empty.
func (l *List) PopFront(nodes Nodes) Index {
	if l.length == 0 {
		return Nil
	}
	i := l.head
	l.Remove(nodes, i)
	return i
}

// Remove unlinks node i and reports whether it was linked. Removing a node
// that is not linked is a no-op and leaves every neighbour untouched.
func (l *List) Remove(nodes Nodes, i Index) bool {
	n := nodes(i)
	if n.next == i {
		// Either the only node of this list or not linked at all.
		if l.length == 1 && l.head == i {
			l.length = 0
			return true
		}
		return false
	}

	nodes(n.prev).next = n.next
	nodes(n.next).prev = n.prev
	if l.head == i {
		l.head = n.next
	}
	n.Init(i)
	l.length--
	return true
}

// Linked reports whether node i is linked, given that i only ever joins l.
// It runs in constant time.
func (l *List) Linked(nodes Nodes, i Index) bool {
	if nodes(i).next != i {
		return true
	}
	return l.length == 1 && l.head == i
}

// Contains walks the list looking for node i.
func (l *List) Contains(nodes Nodes, i Index) bool {
	found := false
	l.Do(nodes, func(j Index) bool {
		found = j == i
		return !found
	})
	return found
}

// Do calls fn for every node from front to back until fn returns false.
// fn must not modify the list.
func (l *List) Do(nodes Nodes, fn func(Index) bool) {
	i := l.head
	for k := 0; k < l.length; k++ {
		next := nodes(i).next
		if !fn(i) {
			return
		}
		i = next
	}
}

// Slice returns the indices from front to back.
func (l *List) Slice(nodes Nodes) []Index {
	out := make([]Index, 0, l.length)
	l.Do(nodes, func(i Index) bool {
		out = append(out, i)
		return true
	})
	return out
}
