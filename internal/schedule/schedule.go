// Package schedule is a single-threaded timer queue dispatched by a driving
// loop against an external clock.
package schedule

import (
	"container/heap"
	"time"

	log "github.com/sirupsen/logrus"
)

// Action runs when its timer comes due. now is the dispatch time, which may
// be later than the time it was scheduled for.
type Action func(now time.Duration)

type plannedAction struct {
	at     time.Duration
	seq    uint64
	fn     Action
	strict bool // never run ahead of at
}

// -------------------- Min-Heap --------------------

type minHeap []plannedAction

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)   { *h = append(*h, x.(plannedAction)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = plannedAction{}
	*h = old[:n-1]
	return x
}

// Scheduler orders actions by fire time. Actions with equal times fire in
// the order they were scheduled. There is no cancellation. A Scheduler is
// not safe for concurrent use.
type Scheduler struct {
	queue minHeap
	next  uint64
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// At schedules fn to run once the clock reaches at, or earlier from
// RunAhead's lookahead.
func (s *Scheduler) At(at time.Duration, fn Action) {
	s.push(at, fn, false)
}

// AtDue schedules fn to run once the clock reaches at. RunAhead never runs
// it early, so fn sees the state as of its own instant.
func (s *Scheduler) AtDue(at time.Duration, fn Action) {
	s.push(at, fn, true)
}

func (s *Scheduler) push(at time.Duration, fn Action, strict bool) {
	s.next++
	heap.Push(&s.queue, plannedAction{at: at, seq: s.next, fn: fn, strict: strict})
}

// RunDue runs every action due at or before now, earliest first, and returns
// how many ran. Actions scheduled by a running action for a time already due
// run in the same pass.
func (s *Scheduler) RunDue(now time.Duration) int {
	ran := 0
	for s.queue.Len() > 0 && s.queue[0].at <= now {
		pa := heap.Pop(&s.queue).(plannedAction)
		pa.fn(now)
		ran++
	}
	if ran > 0 {
		log.WithFields(log.Fields{"count": ran, "remaining": s.queue.Len()}).Trace("flushed timers")
	}
	return ran
}

// RunAhead is RunDue that also runs actions scheduled with At up to ahead
// past now. Actions scheduled with AtDue still wait for now.
func (s *Scheduler) RunAhead(now, ahead time.Duration) int {
	var (
		ran     int
		waiting []plannedAction
	)
	for s.queue.Len() > 0 && s.queue[0].at <= now+ahead {
		pa := heap.Pop(&s.queue).(plannedAction)
		if pa.strict && pa.at > now {
			waiting = append(waiting, pa)
			continue
		}
		pa.fn(now)
		ran++
	}
	for _, pa := range waiting {
		heap.Push(&s.queue, pa)
	}
	if ran > 0 {
		log.WithFields(log.Fields{"count": ran, "remaining": s.queue.Len()}).Trace("flushed timers")
	}
	return ran
}

// Len returns the number of pending actions.
func (s *Scheduler) Len() int {
	return s.queue.Len()
}

// Next returns the fire time of the earliest pending action.
func (s *Scheduler) Next() (time.Duration, bool) {
	if s.queue.Len() == 0 {
		return 0, false
	}
	return s.queue[0].at, true
}
