package feed

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic feed
type testItem struct {
	Seq  uint64
	Name string
}

func seqOf(i testItem) uint64 { return i.Seq }

func TestFeed_New(t *testing.T) {
	f := New[testItem](0, seqOf)
	if f == nil {
		t.Fatal("expected non-nil feed")
	}
	if !f.Empty() {
		t.Error("expected empty feed")
	}
	if f.capacity != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, f.capacity)
	}
}

func TestFeed_PushEvictsOldest(t *testing.T) {
	f := New[testItem](3, seqOf)

	for i := uint64(1); i <= 5; i++ {
		f.Push(testItem{Seq: i})
	}

	if f.Len() != 3 {
		t.Fatalf("expected length 3, got %d", f.Len())
	}
	all := f.Since(0)
	if all[0].Seq != 3 || all[2].Seq != 5 {
		t.Errorf("unexpected retained items: %+v", all)
	}
}

func TestFeed_Since(t *testing.T) {
	f := New[testItem](10, seqOf)
	f.Push(testItem{Seq: 1}, testItem{Seq: 2}, testItem{Seq: 3})

	got := f.Since(1)
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Errorf("expected seq 2,3, got %+v", got)
	}

	if got := f.Since(3); len(got) != 0 {
		t.Errorf("expected nothing after newest, got %+v", got)
	}

	// result is a copy
	got = f.Since(0)
	got[0].Name = "changed"
	if f.Since(0)[0].Name != "" {
		t.Error("Since must not expose internal storage")
	}
}

func TestFeed_Latest(t *testing.T) {
	f := New[testItem](10, seqOf)

	if _, ok := f.Latest(); ok {
		t.Error("expected no latest item on empty feed")
	}

	f.Push(testItem{Seq: 7, Name: "last"})
	latest, ok := f.Latest()
	if !ok || latest.Name != "last" {
		t.Errorf("expected last item, got %+v", latest)
	}
}

func TestFeed_Subscribe(t *testing.T) {
	f := New[testItem](10, seqOf)
	ch, cancel := f.Subscribe(4)
	defer cancel()

	f.Push(testItem{Seq: 1, Name: "first"}, testItem{Seq: 2, Name: "second"})

	if got := <-ch; got.Name != "first" {
		t.Errorf("expected first, got %+v", got)
	}
	if got := <-ch; got.Name != "second" {
		t.Errorf("expected second, got %+v", got)
	}
}

func TestFeed_SlowSubscriberDrops(t *testing.T) {
	f := New[testItem](10, seqOf)
	_, cancel := f.Subscribe(1)
	defer cancel()

	// must not block even though nobody reads
	f.Push(testItem{Seq: 1}, testItem{Seq: 2}, testItem{Seq: 3})

	if f.Dropped() != 2 {
		t.Errorf("expected 2 drops, got %d", f.Dropped())
	}
	if f.Len() != 3 {
		t.Errorf("history must keep everything, got %d", f.Len())
	}
}

func TestFeed_CancelClosesChannel(t *testing.T) {
	f := New[testItem](10, seqOf)
	ch, cancel := f.Subscribe(1)

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}

	// publishing after cancel must not panic on the closed channel
	f.Push(testItem{Seq: 1})
}

func TestFeed_Clear(t *testing.T) {
	f := New[testItem](10, seqOf)
	f.Push(testItem{Seq: 1}, testItem{Seq: 2})

	f.Clear()

	if !f.Empty() {
		t.Error("expected empty feed after clear")
	}
}

func TestFeed_Concurrent(t *testing.T) {
	f := New[testItem](1000, seqOf)
	ch, cancel := f.Subscribe(1000)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			f.Push(testItem{Seq: uint64(id)})
			f.Since(0)
		}(i)
	}
	wg.Wait()

	if f.Len() != 100 {
		t.Errorf("expected 100 items, got %d", f.Len())
	}
	if len(ch) != 100 {
		t.Errorf("expected 100 deliveries, got %d", len(ch))
	}
}
