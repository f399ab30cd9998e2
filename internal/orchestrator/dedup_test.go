package orchestrator

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestShouldProcessFirstSeenWins(t *testing.T) {
	d := NewDeduplicator(time.Hour, 100)
	if !d.ShouldProcess("ev_1") {
		t.Fatal("first delivery rejected")
	}
	for i := 0; i < 5; i++ {
		if d.ShouldProcess("ev_1") {
			t.Fatal("duplicate delivery accepted")
		}
	}
	if !d.ShouldProcess("ev_2") {
		t.Fatal("distinct event rejected")
	}
}

func TestShouldProcessConcurrentExactlyOnce(t *testing.T) {
	d := NewDeduplicator(time.Hour, 1000)
	const n = 64
	var accepted int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if d.ShouldProcess("ev_contended") {
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1 of %d", accepted, n)
	}
}

func TestRetentionWindowExpiry(t *testing.T) {
	d := NewDeduplicator(time.Hour, 100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if !d.ShouldProcess("ev_old") {
		t.Fatal("first delivery rejected")
	}
	now = now.Add(30 * time.Minute)
	if d.ShouldProcess("ev_old") {
		t.Fatal("duplicate inside retention window accepted")
	}
	now = now.Add(2 * time.Hour)
	if !d.ShouldProcess("ev_old") {
		t.Fatal("event not released after retention window")
	}
}

func TestSizeBoundEvictsOldest(t *testing.T) {
	d := NewDeduplicator(time.Hour, 3)
	for i := 0; i < 5; i++ {
		d.ShouldProcess("ev_" + strconv.Itoa(i))
	}
	if got := d.Len(); got > 3 {
		t.Fatalf("retained %d entries, bound is 3", got)
	}
	// The oldest entries were evicted, so they look new again.
	if !d.ShouldProcess("ev_0") {
		t.Fatal("evicted entry still treated as duplicate")
	}
	// The newest survivor is still a duplicate.
	if d.ShouldProcess("ev_4") {
		t.Fatal("retained entry accepted twice")
	}
}

func TestForgetReleasesEntry(t *testing.T) {
	d := NewDeduplicator(time.Hour, 100)
	d.ShouldProcess("ev_retry")
	d.Forget("ev_retry")
	if !d.ShouldProcess("ev_retry") {
		t.Fatal("forgotten event still treated as duplicate")
	}
}
