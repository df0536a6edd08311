// File: internal/task/queue.go
// License: Apache-2.0
//
// Deadline-ordered task queue. Tasks due immediately live in a FIFO so they
// keep insertion order; tasks with a future deadline live in a min-heap keyed
// by (deadline, insertion sequence). Pending handshakes are additionally
// indexed in a second heap which forms the handshake retry schedule.

package task

import (
	"container/heap"
	"time"

	"github.com/eapache/queue"

	"github.com/Gibheer/fastd/peer"
)

type entry struct {
	task     Task
	deadline time.Time
	seq      uint64
	index    int // position in the deferred heap, -1 while in the FIFO
	hsIndex  int // position in the handshake heap, -1 if not a handshake
	dead     bool
}

func (e *entry) before(o *entry) bool {
	if e.deadline.Equal(o.deadline) {
		return e.seq < o.seq
	}
	return e.deadline.Before(o.deadline)
}

type deadlineHeap []*entry

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *deadlineHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	e := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	e.index = -1
	return e
}

type handshakeHeap []*entry

func (h handshakeHeap) Len() int           { return len(h) }
func (h handshakeHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h handshakeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].hsIndex = i
	h[j].hsIndex = j
}
func (h *handshakeHeap) Push(x any) {
	e := x.(*entry)
	e.hsIndex = len(*h)
	*h = append(*h, e)
}
func (h *handshakeHeap) Pop() any {
	old := *h
	e := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	e.hsIndex = -1
	return e
}

// Queue holds every pending task of the daemon. Deadlines are computed from
// the clock passed to NewQueue, which is the loop's time snapshot.
// Not safe for concurrent use.
type Queue struct {
	now        func() time.Time
	ready      *queue.Queue
	deferred   deadlineHeap
	handshakes handshakeHeap
	scheduled  map[*peer.Peer]*entry
	seq        uint64
	live       int
}

// NewQueue creates an empty queue reading the current time from now.
func NewQueue(now func() time.Time) *Queue {
	return &Queue{
		now:       now,
		ready:     queue.New(),
		scheduled: make(map[*peer.Peer]*entry),
	}
}

// Enqueue inserts t with deadline now+timeout; timeout <= 0 means immediately.
// A ScheduleHandshake replaces any handshake already pending for the same peer.
func (q *Queue) Enqueue(t Task, timeout time.Duration) {
	if timeout < 0 {
		timeout = 0
	}
	e := &entry{
		task:     t,
		deadline: q.now().Add(timeout),
		seq:      q.seq,
		index:    -1,
		hsIndex:  -1,
	}
	q.seq++

	if hs, ok := t.(*ScheduleHandshake); ok {
		if old := q.scheduled[hs.peer]; old != nil {
			q.cancel(old)
		}
		q.scheduled[hs.peer] = e
		heap.Push(&q.handshakes, e)
	}

	if timeout == 0 {
		q.ready.Add(e)
	} else {
		heap.Push(&q.deferred, e)
	}
	q.live++
}

// Dequeue removes the task with the earliest deadline if that deadline has
// passed. It returns false when the queue is empty or nothing is due yet.
func (q *Queue) Dequeue() (Task, bool) {
	e := q.head()
	if e == nil || e.deadline.After(q.now()) {
		return nil, false
	}
	if e.index >= 0 {
		heap.Remove(&q.deferred, e.index)
	} else {
		q.ready.Remove()
	}
	q.unschedule(e)
	q.live--
	return e.task, true
}

// Purge removes every task referencing p, releasing the buffers they own,
// and drops p from the handshake schedule. It returns the number of removed
// tasks. The remaining tasks keep their relative order.
func (q *Queue) Purge(p *peer.Peer) int {
	n := 0

	fresh := queue.New()
	for q.ready.Length() > 0 {
		e := q.ready.Remove().(*entry)
		if e.dead {
			continue
		}
		if e.task.Peer() == p {
			e.task.discard()
			n++
			continue
		}
		fresh.Add(e)
	}
	q.ready = fresh

	kept := q.deferred[:0]
	for _, e := range q.deferred {
		if e.task.Peer() == p {
			e.task.discard()
			n++
			continue
		}
		e.index = len(kept)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.deferred); i++ {
		q.deferred[i] = nil
	}
	q.deferred = kept
	heap.Init(&q.deferred)

	if e := q.scheduled[p]; e != nil {
		q.unschedule(e)
	}

	q.live -= n
	return n
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	return q.live
}

// NextHandshake returns the head deadline of the handshake schedule.
func (q *Queue) NextHandshake() (time.Time, bool) {
	if len(q.handshakes) == 0 {
		return time.Time{}, false
	}
	return q.handshakes[0].deadline, true
}

// IsHandshakeScheduled reports whether a handshake for p is pending.
func (q *Queue) IsHandshakeScheduled(p *peer.Peer) bool {
	_, ok := q.scheduled[p]
	return ok
}

// head returns the entry Dequeue would return next, regardless of its deadline.
func (q *Queue) head() *entry {
	for q.ready.Length() > 0 && q.ready.Peek().(*entry).dead {
		q.ready.Remove()
	}
	var e *entry
	if q.ready.Length() > 0 {
		e = q.ready.Peek().(*entry)
	}
	if len(q.deferred) > 0 {
		if d := q.deferred[0]; e == nil || d.deadline.Before(e.deadline) {
			e = d
		}
	}
	return e
}

// cancel removes a replaced handshake. Entries in the FIFO are tombstoned
// and skipped later.
func (q *Queue) cancel(e *entry) {
	if e.index >= 0 {
		heap.Remove(&q.deferred, e.index)
	} else {
		e.dead = true
	}
	q.unschedule(e)
	q.live--
}

func (q *Queue) unschedule(e *entry) {
	if e.hsIndex < 0 {
		return
	}
	heap.Remove(&q.handshakes, e.hsIndex)
	if hs, ok := e.task.(*ScheduleHandshake); ok && q.scheduled[hs.peer] == e {
		delete(q.scheduled, hs.peer)
	}
}
