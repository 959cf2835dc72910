package usecases

import (
	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// queuedCommit is a walk frontier entry.
type queuedCommit struct {
	commit *domain.Commit
	seq    uint64
}

// commitQueue is a priority queue such that the commit with the newest
// committer time is at the root of the heap. Equal times pop in insertion order.
type commitQueue struct {
	heap *binaryheap.Heap
	seq  uint64
}

func newCommitQueue() *commitQueue {
	return &commitQueue{heap: binaryheap.NewWith(compareQueuedCommits)}
}

func compareQueuedCommits(a, b interface{}) int {
	qa := a.(*queuedCommit)
	qb := b.(*queuedCommit)
	ta, tb := qa.commit.Time(), qb.commit.Time()
	switch {
	case ta.After(tb):
		return -1
	case tb.After(ta):
		return 1
	case qa.seq < qb.seq:
		return -1
	case qa.seq > qb.seq:
		return 1
	default:
		return 0
	}
}

func (q *commitQueue) Push(c *domain.Commit) {
	q.seq++
	q.heap.Push(&queuedCommit{commit: c, seq: q.seq})
}

func (q *commitQueue) Pop() (*domain.Commit, bool) {
	v, ok := q.heap.Pop()
	if !ok {
		return nil, false
	}
	return v.(*queuedCommit).commit, true
}

func (q *commitQueue) Len() int {
	return q.heap.Size()
}
