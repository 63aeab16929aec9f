package cache

// lruNode is an element of the recency ring. It carries its key so the
// cache can drop the map entry when the node falls off the tail.
type lruNode[K comparable] struct {
	key        K
	prev, next *lruNode[K]
}

// lruList orders keys by recency around a sentinel: root.next is the most
// recently used key, root.prev the least. Not safe for concurrent use.
type lruList[K comparable] struct {
	root lruNode[K]
	len  int
}

func newLRUList[K comparable]() *lruList[K] {
	l := &lruList[K]{}
	l.Clear()
	return l
}

// Len returns the number of keys in the list.
func (l *lruList[K]) Len() int { return l.len }

// PushFront inserts key as the most recently used.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	n := &lruNode[K]{key: key}
	l.insertAfter(n, &l.root)
	l.len++
	return n
}

// MoveToFront marks n as the most recently used.
func (l *lruList[K]) MoveToFront(n *lruNode[K]) {
	if n == nil || l.root.next == n {
		return
	}
	l.detach(n)
	l.insertAfter(n, &l.root)
}

// Remove drops n from the list.
func (l *lruList[K]) Remove(n *lruNode[K]) {
	if n == nil || n.next == nil {
		return
	}
	l.detach(n)
	n.prev, n.next = nil, nil
	l.len--
}

// RemoveOldest drops the least recently used key and returns it.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	k, ok := l.Oldest()
	if ok {
		l.Remove(l.root.prev)
	}
	return k, ok
}

// Oldest returns the least recently used key without removing it.
func (l *lruList[K]) Oldest() (K, bool) {
	if l.len == 0 {
		var zero K
		return zero, false
	}
	return l.root.prev.key, true
}

// Clear empties the list.
func (l *lruList[K]) Clear() {
	l.root.prev, l.root.next = &l.root, &l.root
	l.len = 0
}

func (l *lruList[K]) insertAfter(n, at *lruNode[K]) {
	n.prev, n.next = at, at.next
	at.next.prev = n
	at.next = n
}

func (l *lruList[K]) detach(n *lruNode[K]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
