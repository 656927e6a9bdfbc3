package router

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_BasicSendReceive(t *testing.T) {
	q := NewQueue[int](10, 100)

	for i := 0; i < 5; i++ {
		if !q.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := q.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}

	if _, ok := q.TryReceive(); ok {
		t.Error("TryReceive on empty queue should return false")
	}
}

func TestQueue_GrowsUpToMax(t *testing.T) {
	q := NewQueue[int](4, 16)

	for i := 0; i < 16; i++ {
		if !q.Send(i) {
			t.Fatalf("Send(%d) returned false before reaching max", i)
		}
	}
	if q.Cap() != 16 {
		t.Errorf("Cap() = %d, want 16", q.Cap())
	}

	// Full: further sends are dropped.
	if q.Send(99) {
		t.Error("Send on full queue should return false")
	}
	stats := q.Stats()
	if stats.Dropped != 1 || stats.Count != 16 || stats.MaxCapacity != 16 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ResizeCount < 2 {
		t.Errorf("ResizeCount = %d, want at least 2", stats.ResizeCount)
	}

	for i := 0; i < 16; i++ {
		val, _ := q.TryReceive()
		if val != i {
			t.Fatalf("received %d, want %d", val, i)
		}
	}

	// Space frees up after draining.
	if !q.Send(100) {
		t.Error("Send should succeed after draining")
	}
}

func TestQueue_MaxBelowInitial(t *testing.T) {
	q := NewQueue[int](0, -1)
	if q.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", q.Cap())
	}
	q.Send(1)
	if q.Send(2) {
		t.Error("queue with max 1 should drop the second item")
	}
}

func TestQueue_BlockingReceive(t *testing.T) {
	q := NewQueue[int](10, 10)
	received := make(chan int, 1)

	go func() {
		val, ok := q.Receive()
		if ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Send(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](10, 10)
	q.Send(1)
	q.Send(2)
	q.Close()

	if q.Send(3) {
		t.Error("Send should return false after Close")
	}
	if q.Stats().Dropped != 0 {
		t.Error("sends after Close are not counted as drops")
	}

	for _, want := range []int{1, 2} {
		val, ok := q.Receive()
		if !ok || val != want {
			t.Errorf("Receive() = %d, %v; want %d, true", val, ok, want)
		}
	}
	if _, ok := q.Receive(); ok {
		t.Error("Receive should return false when closed and empty")
	}
}

func TestQueue_CloseUnblocksReceive(t *testing.T) {
	q := NewQueue[int](10, 10)
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestQueue_DrainTo(t *testing.T) {
	q := NewQueue[int](10, 100)
	for i := 0; i < 10; i++ {
		q.Send(i)
	}

	items := q.DrainTo(5)
	if len(items) != 5 {
		t.Errorf("DrainTo(5) returned %d items, want 5", len(items))
	}
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}

	items = q.DrainTo(0)
	if len(items) != 5 || q.Len() != 0 {
		t.Errorf("DrainTo(0) returned %d items, %d left", len(items), q.Len())
	}
}

func TestQueue_WrapAround(t *testing.T) {
	q := NewQueue[int](5, 50)

	q.Send(1)
	q.Send(2)
	q.Send(3)
	q.TryReceive()
	q.TryReceive()

	// wraps, then grows with wrapped contents
	q.Send(4)
	q.Send(5)
	q.Send(6)
	q.Send(7)
	q.Send(8)

	for _, want := range []int{3, 4, 5, 6, 7, 8} {
		got, ok := q.TryReceive()
		if !ok || got != want {
			t.Fatalf("got %d, %v; want %d", got, ok, want)
		}
	}
}

func TestQueue_ConcurrentSendReceive(t *testing.T) {
	q := NewQueue[int](10, 2000)
	const numItems = 1000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			q.Send(i)
		}
	}()

	received := make([]int, 0, numItems)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			if val, ok := q.Receive(); ok {
				received = append(received, val)
			}
		}
	}()
	wg.Wait()

	if len(received) != numItems {
		t.Fatalf("received %d items, want %d", len(received), numItems)
	}
	for i, val := range received {
		if val != i {
			t.Fatalf("item %d = %d, single producer order not preserved", i, val)
		}
	}
}
