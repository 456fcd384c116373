package runtime

import (
	"sync"
	"testing"
)

func TestPopIsFIFOOnLocalQueue(t *testing.T) {
	s := NewWorkStealing(2, DefaultStealThreshold)
	s.Push(1, "a")
	s.Push(1, "b")
	s.Push(1, "c")

	first, ok := s.Pop(1)
	if !ok || first != "a" {
		t.Fatalf("expected FIFO pop to return 'a' first, got %v", first)
	}
	second, _ := s.Pop(1)
	if second != "b" {
		t.Fatalf("expected FIFO pop to return 'b' second, got %v", second)
	}
}

func TestPopFallsBackToStealWhenLocalEmpty(t *testing.T) {
	s := NewWorkStealing(2, 1)
	for i := 0; i < 5; i++ {
		s.Push(2, i)
	}

	item, ok := s.Pop(1)
	if !ok {
		t.Fatal("expected worker 1 to steal from worker 2's overfull queue")
	}
	if item != 4 {
		t.Fatalf("expected a steal to take the tail (LIFO), got %v", item)
	}
}

func TestStealRespectsThreshold(t *testing.T) {
	s := NewWorkStealing(2, 5)
	for i := 0; i < 3; i++ {
		s.Push(2, i) // below threshold
	}
	if _, ok := s.Steal(1); ok {
		t.Fatal("expected no steal below the threshold")
	}
}

func TestStealNeverTargetsOwnQueue(t *testing.T) {
	s := NewWorkStealing(1, 0)
	s.Push(1, "solo")
	if _, ok := s.Steal(1); ok {
		t.Fatal("a lone worker must never steal from itself")
	}
}

func TestStealPicksLongestQueueTiedToSmallestWorkerID(t *testing.T) {
	s := NewWorkStealing(3, 1)
	for i := 0; i < 3; i++ {
		s.Push(1, i)
		s.Push(2, i)
	}
	// queues 1 and 2 are tied in length; the thief is worker 3, so the
	// smaller id (1) should be chosen.
	item, ok := s.Steal(3)
	if !ok {
		t.Fatal("expected a steal to succeed")
	}
	if item != 2 { // tail of worker 1's queue, LIFO
		t.Fatalf("expected to steal the tail of worker 1's queue, got %v", item)
	}
	if s.Len(1) != 2 {
		t.Fatalf("expected worker 1's queue to shrink by one, got length %d", s.Len(1))
	}
	if s.Len(2) != 3 {
		t.Fatal("expected worker 2's queue to be untouched")
	}
}

func TestShutdownDrainsEveryQueue(t *testing.T) {
	s := NewWorkStealing(2, 0)
	s.Push(1, "a")
	s.Push(2, "b")
	s.Push(2, "c")

	leftover := s.Shutdown()
	if len(leftover) != 3 {
		t.Fatalf("expected 3 leftover items, got %d: %v", len(leftover), leftover)
	}
	if s.Len(1) != 0 || s.Len(2) != 0 {
		t.Fatal("expected queues to be empty after Shutdown")
	}
}

func TestConcurrentPushPopDoesNotRace(t *testing.T) {
	s := NewWorkStealing(4, 2)
	var wg sync.WaitGroup
	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Push(worker, i)
			}
		}(w)
	}
	wg.Wait()

	var total int
	for w := 1; w <= 4; w++ {
		for {
			if _, ok := s.Pop(w); ok {
				total++
			} else {
				break
			}
		}
	}
	leftover := s.Shutdown()
	total += len(leftover)
	if total != 400 {
		t.Fatalf("expected to account for all 400 pushed items, got %d", total)
	}
}
