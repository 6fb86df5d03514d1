// Package testutil provides testing utilities for the recruiting API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize is the limit applied when a list request carries none.
const DefaultPageSize = 12

// Record is a JSON object served by the mock collections.
type Record map[string]interface{}

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
	// Applied lets the request reach its handler first; only the answer is
	// replaced, as when a response is lost after the server acted on it.
	Applied bool
}

// RecordedRequest is a request seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable in-process recruiting API for tests.
// It serves paginated job and resume lists, the profile endpoint and the
// list mutations.
type MockAPI struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	jobs     []Record
	resumes  []Record
	profile  Record
	etags    bool
	failures []MockResponse

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	requests          []RecordedRequest
}

// NewMockAPI creates and starts a mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		mux:      http.NewServeMux(),
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.mux.HandleFunc("GET /user/profile/{$}", mock.handleProfile)
	mock.mux.HandleFunc("GET /jobs/list/{$}", mock.listHandler(func() []Record { return mock.jobs }, "department", matchDepartment))
	mock.mux.HandleFunc("GET /resumes/{$}", mock.listHandler(func() []Record { return mock.resumes }, "q", matchResumeQuery))
	mock.mux.HandleFunc("DELETE /jobs/delete/{id}/{$}", mock.deleteHandler(&mock.jobs))
	mock.mux.HandleFunc("DELETE /resumes/delete/{id}/{$}", mock.deleteHandler(&mock.resumes))
	mock.mux.HandleFunc("PATCH /jobs/status/{id}/{$}", mock.handleToggleStatus)

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}

	var failure *MockResponse
	if len(m.failures) > 0 {
		f := m.failures[0]
		m.failures = m.failures[1:]
		failure = &f
	}
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if failure != nil {
		if failure.Applied {
			rec := httptest.NewRecorder()
			if exists {
				handler(rec, r)
			} else {
				m.mux.ServeHTTP(rec, r)
			}
		}
		writeMockResponse(w, *failure)
		return
	}
	if exists {
		handler(w, r)
		return
	}
	m.mux.ServeHTTP(w, r)
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.requests = nil
}

// SetHandler overrides the handler of a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeMockResponse(w, resp)
	})
}

// FailNext answers the next len(responses) requests, whatever their path,
// with the given responses in order.
func (m *MockAPI) FailNext(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, responses...)
}

// EnableETags makes list and profile responses carry an ETag and answer
// matching If-None-Match requests with 304.
func (m *MockAPI) EnableETags(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = enabled
}

// SetJobs replaces the job collection.
func (m *MockAPI) SetJobs(jobs ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append([]Record(nil), jobs...)
}

// SetResumes replaces the resume collection.
func (m *MockAPI) SetResumes(resumes ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes = append([]Record(nil), resumes...)
}

// SetProfile sets the profile returned by /user/profile/. nil answers 401.
func (m *MockAPI) SetProfile(profile Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = profile
}

// Jobs returns a copy of the job collection.
func (m *MockAPI) Jobs() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.jobs...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// Requests returns the recorded requests, optionally limited to one path.
func (m *MockAPI) Requests(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RecordedRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Offsets returns the offsets requested from a list path, in order.
func (m *MockAPI) Offsets(path string) []int {
	var out []int
	for _, r := range m.Requests(path) {
		offset, _ := strconv.Atoi(r.Query.Get("offset"))
		out = append(out, offset)
	}
	return out
}

// JobRecord builds a job posting record.
func JobRecord(id int, title, email, creator, department string) Record {
	return Record{
		"id":           id,
		"title":        title,
		"email":        email,
		"creator_name": creator,
		"department":   department,
		"location":     "Remote",
		"type":         "Full-time",
		"status":       "Open",
		"created_at":   "2026-01-15T09:30:00Z",
	}
}

// ResumeRecord builds a resume summary record.
func ResumeRecord(id int, candidate string, skills ...string) Record {
	return Record{
		"id":               id,
		"candidate_name":   candidate,
		"email":            strings.ToLower(strings.ReplaceAll(candidate, " ", ".")) + "@mail.test",
		"experience_years": 3,
		"cpd_level":        "L2",
		"skills":           skills,
	}
}

func (m *MockAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	profile := m.profile
	m.mu.RUnlock()

	if profile == nil {
		writeJSON(w, r, http.StatusUnauthorized, Record{"detail": "Authentication credentials were not provided."}, false)
		return
	}
	writeJSON(w, r, http.StatusOK, profile, m.etagsEnabled())
}

func (m *MockAPI) listHandler(items func() []Record, filterKey string, match func(Record, string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		limit, err := strconv.Atoi(query.Get("limit"))
		if err != nil || limit <= 0 {
			limit = DefaultPageSize
		}
		offset, err := strconv.Atoi(query.Get("offset"))
		if err != nil || offset < 0 {
			offset = 0
		}
		filter := query.Get(filterKey)

		m.mu.RLock()
		var matched []Record
		for _, it := range items() {
			if filter == "" || match(it, filter) {
				matched = append(matched, it)
			}
		}
		m.mu.RUnlock()

		results := []Record{}
		if offset < len(matched) {
			end := offset + limit
			if end > len(matched) {
				end = len(matched)
			}
			results = matched[offset:end]
		}

		var next interface{}
		if offset+limit < len(matched) {
			next = offset + limit
		}
		writeJSON(w, r, http.StatusOK, Record{"results": results, "next_offset": next}, m.etagsEnabled())
	}
}

func (m *MockAPI) deleteHandler(collection *[]Record) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		m.mu.Lock()
		idx := indexOf(*collection, id)
		if idx >= 0 {
			*collection = append((*collection)[:idx], (*collection)[idx+1:]...)
		}
		m.mu.Unlock()

		if idx < 0 {
			writeJSON(w, r, http.StatusNotFound, Record{"error": "Not found"}, false)
			return
		}
		writeJSON(w, r, http.StatusOK, Record{"message": "Deleted"}, false)
	}
}

func (m *MockAPI) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	idx := indexOf(m.jobs, id)
	var status string
	if idx >= 0 {
		status = "Closed"
		if m.jobs[idx]["status"] == "Closed" {
			status = "Open"
		}
		updated := Record{}
		for k, v := range m.jobs[idx] {
			updated[k] = v
		}
		updated["status"] = status
		m.jobs[idx] = updated
	}
	m.mu.Unlock()

	if idx < 0 {
		writeJSON(w, r, http.StatusNotFound, Record{"error": "Not found"}, false)
		return
	}
	writeJSON(w, r, http.StatusOK, Record{"status": status}, false)
}

func (m *MockAPI) etagsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.etags
}

func indexOf(items []Record, id string) int {
	for i, it := range items {
		if fmt.Sprint(it["id"]) == id {
			return i
		}
	}
	return -1
}

func matchDepartment(it Record, filter string) bool {
	dept, _ := it["department"].(string)
	return strings.EqualFold(strings.TrimSpace(dept), strings.TrimSpace(filter))
}

func matchResumeQuery(it Record, filter string) bool {
	filter = strings.ToLower(filter)
	if name, _ := it["candidate_name"].(string); strings.Contains(strings.ToLower(name), filter) {
		return true
	}
	switch skills := it["skills"].(type) {
	case []string:
		for _, s := range skills {
			if strings.Contains(strings.ToLower(s), filter) {
				return true
			}
		}
	case []interface{}:
		for _, s := range skills {
			if strings.Contains(strings.ToLower(fmt.Sprint(s)), filter) {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}, etags bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if etags && status == http.StatusOK {
		h := fnv.New64a()
		h.Write(body)
		etag := fmt.Sprintf(`"%x"`, h.Sum64())
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(status)
	w.Write(body)
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}
