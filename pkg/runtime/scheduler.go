package runtime

// DefaultStealThreshold is the minimum victim-queue length at which
// stealing is allowed, avoiding thrash when all queues are near-empty.
const DefaultStealThreshold = 5

// Scheduler is a vector of per-worker work queues plus a steal
// threshold. Workers are identified by an integer in [1, N].
type Scheduler struct {
	queues         []*queue
	stealThreshold int
}

// NewWorkStealing creates a scheduler with nWorkers queues. Queues are
// created here and drained/destroyed by Shutdown.
func NewWorkStealing(nWorkers, stealThreshold int) *Scheduler {
	if stealThreshold < 0 {
		stealThreshold = DefaultStealThreshold
	}
	qs := make([]*queue, nWorkers)
	for i := range qs {
		qs[i] = newQueue()
	}
	return &Scheduler{queues: qs, stealThreshold: stealThreshold}
}

func (s *Scheduler) idx(worker int) int { return worker - 1 }

// Push appends item to the tail of worker's queue.
func (s *Scheduler) Push(worker int, item any) {
	s.queues[s.idx(worker)].pushTail(item)
}

// Pop removes and returns the head of worker's own queue (FIFO). If the
// local queue is empty, it attempts a Steal on the caller's behalf.
func (s *Scheduler) Pop(worker int) (any, bool) {
	if item, ok := s.queues[s.idx(worker)].popHead(); ok {
		return item, true
	}
	return s.Steal(worker)
}

// Steal scans every queue but the thief's own, snapshotting lengths
// under each queue's lock (released immediately after the snapshot). It
// picks the longest queue exceeding the steal threshold, ties broken to
// the smallest worker id, then removes that queue's tail (LIFO). If no
// queue qualifies, or the chosen queue is empty by the time its lock is
// reacquired, it returns (nil, false).
func (s *Scheduler) Steal(thief int) (any, bool) {
	thiefIdx := s.idx(thief)

	bestIdx := -1
	bestLen := 0
	for i, q := range s.queues {
		if i == thiefIdx {
			continue
		}
		l := q.length()
		if l <= s.stealThreshold {
			continue
		}
		if bestIdx == -1 || l > bestLen {
			bestIdx, bestLen = i, l
		}
	}
	if bestIdx == -1 {
		return nil, false
	}
	return s.queues[bestIdx].popTail()
}

// Len returns the current length of worker's queue.
func (s *Scheduler) Len(worker int) int {
	return s.queues[s.idx(worker)].length()
}

// Shutdown drains every queue and returns whatever items remained
// undispatched, in worker order.
func (s *Scheduler) Shutdown() []any {
	var leftover []any
	for _, q := range s.queues {
		leftover = append(leftover, q.drain()...)
	}
	return leftover
}
