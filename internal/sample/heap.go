package sample

// item is one candidate kept in a size-bounded reservoir: its feature row
// plus the Efraimidis-Spirakis key u^(1/w) it was drawn with.
type item struct {
	key float64
	row []float32
}

// minHeap orders items by ascending key so the smallest of the currently
// kept items — the one to evict when a larger key arrives — sits at the
// root. The items a size-k reservoir ends up holding are exactly the k
// largest keys seen (spec.md Glossary "weighted reservoir sampling"); a
// min-heap is the standard efficient structure for maintaining that set
// online.
type minHeap []item

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].key < h[j].key }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
