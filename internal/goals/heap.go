package goals

import (
	"container/heap"
	"time"
)

type tickItem struct {
	goalID string
	at     time.Time
	seq    uint64
	index  int
}

// tickQueue is a min-heap of pending ticks ordered by time, then by scheduling order.
type tickQueue []*tickItem

func (q tickQueue) Len() int { return len(q) }

func (q tickQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q tickQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *tickQueue) Push(x any) {
	item := x.(*tickItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *tickQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

func (q tickQueue) peek() *tickItem {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

var _ heap.Interface = (*tickQueue)(nil)
