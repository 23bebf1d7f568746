package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetch_LoadsOnceUnderConcurrency(t *testing.T) {
	c := NewArtifactCache(time.Hour)
	var loads atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (string, error) {
		loads.Add(1)
		<-release
		return "model", nil
	}

	const callers = 32
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(context.Background(), c, ArtifactModel, load)
		}(i)
	}

	// Give the goroutines time to pile up on the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Errorf("load called %d times, want 1", got)
	}
	for i := range results {
		if errs[i] != nil || results[i] != "model" {
			t.Errorf("caller %d got (%q, %v)", i, results[i], errs[i])
		}
	}
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := NewArtifactCache(time.Hour)
	wantErr := errors.New("model server down")
	calls := 0

	load := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, wantErr
		}
		return 42, nil
	}

	if _, err := Fetch(context.Background(), c, ArtifactCatalog, load); !errors.Is(err, wantErr) {
		t.Fatalf("first Fetch() error = %v, want %v", err, wantErr)
	}
	if _, ok := c.LoadedAt(ArtifactCatalog); ok {
		t.Fatal("failed load left an entry behind")
	}

	got, err := Fetch(context.Background(), c, ArtifactCatalog, load)
	if err != nil || got != 42 {
		t.Fatalf("second Fetch() = (%d, %v), want (42, nil)", got, err)
	}
	if calls != 2 {
		t.Errorf("load called %d times, want 2", calls)
	}
}

func TestFetch_ReloadsAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewArtifactCache(time.Hour)
	c.SetClock(clock.Now)

	version := 0
	load := func(context.Context) (int, error) {
		version++
		return version, nil
	}

	tests := []struct {
		name    string
		advance time.Duration
		want    int
	}{
		{name: "first load", advance: 0, want: 1},
		{name: "within ttl", advance: 30 * time.Minute, want: 1},
		{name: "after ttl", advance: 31 * time.Minute, want: 2},
		{name: "cached again", advance: time.Minute, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			got, err := Fetch(context.Background(), c, ArtifactCatalog, load)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFetch_Clear(t *testing.T) {
	c := NewArtifactCache(0)
	loads := 0
	load := func(context.Context) (string, error) {
		loads++
		return "x", nil
	}

	_, _ = Fetch(context.Background(), c, ArtifactModel, load)
	_, _ = Fetch(context.Background(), c, ArtifactModel, load)
	c.Clear()
	if _, ok := c.LoadedAt(ArtifactModel); ok {
		t.Error("artifact still cached after Clear")
	}
	_, _ = Fetch(context.Background(), c, ArtifactModel, load)

	if loads != 2 {
		t.Errorf("load called %d times, want 2", loads)
	}
}

func TestFetch_TypeMismatch(t *testing.T) {
	c := NewArtifactCache(time.Hour)
	_, _ = Fetch(context.Background(), c, ArtifactModel, func(context.Context) (string, error) {
		return "model", nil
	})

	_, err := Fetch(context.Background(), c, ArtifactModel, func(context.Context) (int, error) {
		return 1, nil
	})
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
}
