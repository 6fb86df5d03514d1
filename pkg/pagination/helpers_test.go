package pagination

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// testJob is a minimal owned item.
type testJob struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Name  string `json:"creator_name"`
	Title string `json:"title"`
}

func (j testJob) ItemID() ID         { return j.ID }
func (j testJob) OwnerEmail() string { return j.Email }
func (j testJob) OwnerName() string  { return j.Name }

func intPtr(v int) *int { return &v }

// scriptedSource answers page requests from a queue of responses and
// records every request it receives.
type scriptedSource struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []PageRequest

	// gate, when set, blocks every List call until it is closed or receives.
	gate    chan struct{}
	entered chan struct{}
}

type scriptedResponse struct {
	page PageResponse[testJob]
	err  error
}

var errBackend = errors.New("backend unavailable")

func newScriptedSource(responses ...scriptedResponse) *scriptedSource {
	return &scriptedSource{responses: responses}
}

func (s *scriptedSource) withGate() *scriptedSource {
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 16)
	return s
}

func (s *scriptedSource) List(ctx context.Context, req PageRequest) (PageResponse[testJob], error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		s.entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return PageResponse[testJob]{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return PageResponse[testJob]{Results: []testJob{}}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp.page, resp.err
}

func (s *scriptedSource) push(responses ...scriptedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

func (s *scriptedSource) offsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Offset)
	}
	return out
}

func (s *scriptedSource) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedSource) lastRequest() PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func page(next *int, jobs ...testJob) scriptedResponse {
	if jobs == nil {
		jobs = []testJob{}
	}
	return scriptedResponse{page: PageResponse[testJob]{Results: jobs, NextOffset: next}}
}

func failure(err error) scriptedResponse {
	return scriptedResponse{err: err}
}

func job(id, email, name string) testJob {
	return testJob{ID: ID(id), Email: email, Name: name}
}

// recordingSink collects applied pages.
type recordingSink struct {
	mu      sync.Mutex
	applied [][]testJob
	initial []bool
	resets  int
}

func (s *recordingSink) ApplyPage(isInitial bool, items []testJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, items)
	s.initial = append(s.initial, isInitial)
}

func (s *recordingSink) ResetPages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func ids(items []testJob) []ID {
	out := make([]ID, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalIDs(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// collectionSource pages over a mutable slice the way the list endpoints
// do: next_offset is offset+limit while items remain, then null.
type collectionSource struct {
	mu       sync.Mutex
	items    []testJob
	requests []PageRequest
}

func newCollectionSource(items ...testJob) *collectionSource {
	return &collectionSource{items: items}
}

func (s *collectionSource) List(ctx context.Context, req PageRequest) (PageResponse[testJob], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	start := min(req.Offset, len(s.items))
	end := min(req.Offset+req.Limit, len(s.items))
	out := PageResponse[testJob]{Results: append([]testJob{}, s.items[start:end]...)}
	if end < len(s.items) {
		out.NextOffset = intPtr(end)
	}
	return out, nil
}

func (s *collectionSource) delete(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = removeID(s.items, id)
}

func (s *collectionSource) offsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.requests))
	for _, r := range s.requests {
		if r.Limit != DefaultCountLimit {
			out = append(out, r.Offset)
		}
	}
	return out
}

// ownedJobs returns n jobs with ids 1..n; every third belongs to Alice.
func ownedJobs(n int) []testJob {
	out := make([]testJob, 0, n)
	for i := 1; i <= n; i++ {
		if i%3 == 0 {
			out = append(out, job(strconv.Itoa(i), "a@x.com", "Alice"))
			continue
		}
		out = append(out, job(strconv.Itoa(i), "b@x.com", "Bob"))
	}
	return out
}
