package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFetcher_WalksOffsetsUntilNull(t *testing.T) {
	src := newScriptedSource(
		page(intPtr(12), job("1", "", "")),
		page(intPtr(24), job("2", "", "")),
		page(nil, job("3", "", "")),
	)
	sink := &recordingSink{}
	f := NewFetcher[testJob](src, NewCursor(), sink, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	if _, err := f.FetchPage(ctx, true); err != nil {
		t.Fatalf("initial FetchPage() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.FetchPage(ctx, false); err != nil {
			t.Fatalf("next FetchPage() #%d error = %v", i, err)
		}
	}

	if got := src.offsets(); !equalInts(got, []int{0, 12, 24}) {
		t.Errorf("requested offsets = %v, want [0 12 24]", got)
	}
	if f.HasMore() {
		t.Error("HasMore() = true after null next_offset")
	}

	_, err := f.FetchPage(ctx, false)
	if !errors.Is(err, ErrNoMorePages) {
		t.Errorf("FetchPage() after exhaustion error = %v, want ErrNoMorePages", err)
	}
	if src.requestCount() != 3 {
		t.Errorf("requests = %d, want 3", src.requestCount())
	}

	if len(sink.applied) != 3 || !sink.initial[0] || sink.initial[1] || sink.initial[2] {
		t.Errorf("sink saw initial flags %v", sink.initial)
	}
}

func TestFetcher_UsesPageSizeAndFilter(t *testing.T) {
	src := newScriptedSource(page(nil))
	f := NewFetcher[testJob](src, nil, nil, FetcherConfig{Name: "jobs", PageSize: 5})

	f.Reset("Engineering")
	if _, err := f.FetchPage(context.Background(), true); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	req := src.lastRequest()
	if req.Limit != 5 || req.Offset != 0 || req.Filter != "Engineering" {
		t.Errorf("request = %+v", req)
	}
	if f.Filter() != "Engineering" {
		t.Errorf("Filter() = %q", f.Filter())
	}
}

func TestFetcher_DefaultPageSize(t *testing.T) {
	src := newScriptedSource(page(nil))
	f := NewFetcher[testJob](src, nil, nil, FetcherConfig{Name: "jobs"})

	if _, err := f.FetchPage(context.Background(), true); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if got := src.lastRequest().Limit; got != DefaultPageSize {
		t.Errorf("limit = %d, want %d", got, DefaultPageSize)
	}
}

func TestFetcher_EmptyFirstPage(t *testing.T) {
	src := newScriptedSource(page(nil))
	sink := &recordingSink{}
	f := NewFetcher[testJob](src, nil, sink, FetcherConfig{Name: "jobs"})

	resp, err := f.FetchPage(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %v, want none", resp.Results)
	}
	if f.HasMore() {
		t.Error("HasMore() = true for empty terminal page")
	}
	if f.Fetching() {
		t.Error("Fetching() = true after completion")
	}
}

func TestFetcher_FailureKeepsCursor(t *testing.T) {
	src := newScriptedSource(
		page(intPtr(12), job("1", "", "")),
		failure(errBackend),
		page(nil, job("2", "", "")),
	)
	f := NewFetcher[testJob](src, nil, &recordingSink{}, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	if _, err := f.FetchPage(ctx, true); err != nil {
		t.Fatalf("initial FetchPage() error = %v", err)
	}

	_, err := f.FetchPage(ctx, false)
	if !errors.Is(err, errBackend) {
		t.Fatalf("FetchPage() error = %v, want wrapped errBackend", err)
	}
	if f.Fetching() {
		t.Error("in-flight flag not cleared after failure")
	}
	if next, ok := f.cursor.Load(); !ok || next != 12 {
		t.Errorf("cursor = (%d, %v), want (12, true)", next, ok)
	}

	if _, err := f.FetchPage(ctx, false); err != nil {
		t.Fatalf("retry FetchPage() error = %v", err)
	}
	if got := src.offsets(); !equalInts(got, []int{0, 12, 12}) {
		t.Errorf("offsets = %v, want [0 12 12]", got)
	}
}

func TestFetcher_OneNextPageInFlight(t *testing.T) {
	src := newScriptedSource(page(intPtr(12), job("1", "", "")))
	f := NewFetcher[testJob](src, nil, &recordingSink{}, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	if _, err := f.FetchPage(ctx, true); err != nil {
		t.Fatalf("initial FetchPage() error = %v", err)
	}

	src.withGate()
	src.push(page(nil, job("2", "", "")))

	done := make(chan error, 1)
	go func() {
		_, err := f.FetchPage(ctx, false)
		done <- err
	}()
	<-src.entered

	// Both a second next-page trigger and a concurrent one are refused.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.FetchPage(ctx, false); !errors.Is(err, ErrFetchInProgress) {
				t.Errorf("concurrent FetchPage() error = %v, want ErrFetchInProgress", err)
			}
		}()
	}
	wg.Wait()

	loading, more := f.Busy()
	if loading || !more {
		t.Errorf("Busy() = (%v, %v), want (false, true)", loading, more)
	}

	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("gated FetchPage() error = %v", err)
	}
	if src.requestCount() != 2 {
		t.Errorf("requests = %d, want 2", src.requestCount())
	}
}

func TestFetcher_ResetDiscardsInFlightPage(t *testing.T) {
	src := newScriptedSource(page(intPtr(12), job("1", "", "")))
	sink := &recordingSink{}
	f := NewFetcher[testJob](src, nil, sink, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	if _, err := f.FetchPage(ctx, true); err != nil {
		t.Fatalf("initial FetchPage() error = %v", err)
	}

	src.withGate()
	src.push(page(intPtr(24), job("stale", "", "")))

	done := make(chan error, 1)
	go func() {
		_, err := f.FetchPage(ctx, false)
		done <- err
	}()
	<-src.entered

	f.Reset("Sales")
	close(src.gate)

	if err := <-done; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("FetchPage() error = %v, want ErrStaleResponse", err)
	}
	if next, ok := f.cursor.Load(); !ok || next != 0 {
		t.Errorf("cursor = (%d, %v), want (0, true)", next, ok)
	}
	for _, applied := range sink.applied {
		for _, it := range applied {
			if it.ID == "stale" {
				t.Error("stale page reached the sink")
			}
		}
	}
	if sink.resets != 1 {
		t.Errorf("sink resets = %d, want 1", sink.resets)
	}
}

func TestFetcher_ItemRemovedDiscardsPageInFlight(t *testing.T) {
	src := newScriptedSource(page(intPtr(12), job("1", "", "")))
	sink := &recordingSink{}
	f := NewFetcher[testJob](src, nil, sink, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	if _, err := f.FetchPage(ctx, true); err != nil {
		t.Fatalf("initial FetchPage() error = %v", err)
	}

	src.withGate()
	src.push(page(intPtr(24), job("shifted", "", "")))

	done := make(chan error, 1)
	go func() {
		_, err := f.FetchPage(ctx, false)
		done <- err
	}()
	<-src.entered

	f.ItemRemoved()
	close(src.gate)

	if err := <-done; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("FetchPage() error = %v, want ErrStaleResponse", err)
	}
	if next, ok := f.cursor.Load(); !ok || next != 11 {
		t.Errorf("cursor = (%d, %v), want (11, true)", next, ok)
	}
	if f.Fetching() {
		t.Error("Fetching() = true after the discarded page")
	}
	if len(sink.applied) != 1 {
		t.Errorf("sink got %d pages, want only the initial one", len(sink.applied))
	}
}

func TestFetcher_InitialSupersedesNextPage(t *testing.T) {
	src := newScriptedSource(page(intPtr(12), job("1", "", ""))).withGate()
	f := NewFetcher[testJob](src, nil, &recordingSink{}, FetcherConfig{Name: "jobs"})
	ctx := context.Background()

	go func() { _, _ = f.FetchPage(ctx, true) }()
	<-src.entered

	if _, err := f.FetchPage(ctx, true); !errors.Is(err, ErrFetchInProgress) {
		t.Errorf("second initial FetchPage() error = %v, want ErrFetchInProgress", err)
	}
	if _, err := f.FetchPage(ctx, false); !errors.Is(err, ErrFetchInProgress) {
		t.Errorf("next FetchPage() during initial error = %v, want ErrFetchInProgress", err)
	}
	close(src.gate)
}

func TestFetcher_Timeout(t *testing.T) {
	src := newScriptedSource(page(nil)).withGate()
	f := NewFetcher[testJob](src, nil, nil, FetcherConfig{Name: "jobs", Timeout: 20 * time.Millisecond})

	_, err := f.FetchPage(context.Background(), true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchPage() error = %v, want deadline exceeded", err)
	}
	if f.Fetching() {
		t.Error("Fetching() = true after timeout")
	}
}
