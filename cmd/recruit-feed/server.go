package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/recruit-client/pkg/client"
	"github.com/Sternrassler/recruit-client/pkg/logging"
	"github.com/Sternrassler/recruit-client/pkg/metrics"
	"github.com/Sternrassler/recruit-client/pkg/pagination"
	"github.com/Sternrassler/recruit-client/pkg/recruit"
)

// server exposes the job and resume feeds over HTTP.
type server struct {
	api      *recruit.API
	resolver *recruit.IdentityResolver
	jobs     *pagination.Controller[recruit.JobPosting]
	feeds    map[string]feed
	redis    *redis.Client
	logger   zerolog.Logger
}

func newServer(api *recruit.API, resolver *recruit.IdentityResolver, opts recruit.ListOptions, redisClient *redis.Client) *server {
	jobs := recruit.NewJobsController(api, opts)
	resumes := recruit.NewResumesController(api, opts)

	return &server{
		api:      api,
		resolver: resolver,
		jobs:     jobs,
		feeds: map[string]feed{
			recruit.ListJobs:    newListFeed(jobs, api.DeleteJob),
			recruit.ListResumes: newListFeed(resumes, api.DeleteResume),
		},
		redis:  redisClient,
		logger: logging.NewLogger("feed-server"),
	}
}

// start mounts every feed and resolves the current user. Failures are
// logged; the feeds keep them in their error slot.
func (s *server) start(ctx context.Context) {
	for name, f := range s.feeds {
		if err := f.mount(ctx); err != nil {
			s.logger.Error().Err(err).Str("list", name).Msg("Initial fetch failed")
		}
	}
	if _, err := s.resolver.Resolve(ctx, s.identityTargets()...); err != nil {
		s.logger.Warn().Err(err).Msg("Identity not resolved")
	}
}

func (s *server) close() {
	for _, f := range s.feeds {
		f.close()
	}
}

func (s *server) identityTargets() []recruit.IdentityTarget {
	targets := make([]recruit.IdentityTarget, 0, len(s.feeds))
	for _, f := range s.feeds {
		targets = append(targets, f)
	}
	return targets
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /identity", s.handleIdentity)
	mux.HandleFunc("GET /feeds/{name}", s.handleFeed)
	mux.HandleFunc("POST /feeds/{name}/more", s.handleMore)
	mux.HandleFunc("POST /feeds/{name}/visible", s.handleVisible)
	mux.HandleFunc("DELETE /feeds/{name}/items/{id}", s.handleDelete)
	mux.HandleFunc("POST /feeds/jobs/items/{id}/toggle", s.handleToggle)
	return s.logRequests(mux)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			http.Error(w, "Redis not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (s *server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	profile, err := s.resolver.Resolve(r.Context(), s.identityTargets()...)
	if err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleFeed returns the feed snapshot. A filter parameter that differs
// from the active filter resets the list first.
func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	status := http.StatusOK
	query := r.URL.Query()
	if query.Has("filter") && query.Get("filter") != f.filter() {
		status = fetchStatus(f.setFilter(r.Context(), query.Get("filter")))
	}
	writeJSON(w, status, f.snapshot())
}

func (s *server) handleMore(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, fetchStatus(f.loadMore(r.Context())), f.snapshot())
}

type visibleResponse struct {
	Fired bool `json:"fired"`
	Feed  any  `json:"feed"`
}

// handleVisible forwards a viewport notification to the scroll sentinel.
// With wait=true the response is sent once a started fetch completed.
func (s *server) handleVisible(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	fired := f.visible(pagination.ID(id))
	if fired && r.URL.Query().Get("wait") == "true" {
		f.wait()
	}
	writeJSON(w, http.StatusOK, visibleResponse{Fired: fired, Feed: f.snapshot()})
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	if err := f.delete(r.Context(), pagination.ID(r.PathValue("id"))); err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := pagination.ID(r.PathValue("id"))

	status, err := s.api.ToggleJobStatus(r.Context(), id)
	if err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}

	for _, job := range s.jobs.Snapshot().Items {
		if job.ID == id {
			job.Status = status
			s.jobs.Replace(job)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": string(id), "status": status})
}

func (s *server) feed(w http.ResponseWriter, r *http.Request) (feed, bool) {
	f, ok := s.feeds[r.PathValue("name")]
	if !ok {
		http.Error(w, "unknown feed", http.StatusNotFound)
	}
	return f, ok
}

// fetchStatus maps a fetch outcome to the response status. Fetches that
// did nothing are not failures; the snapshot carries the error details.
func fetchStatus(err error) int {
	switch {
	case err == nil,
		errors.Is(err, pagination.ErrNoMorePages),
		errors.Is(err, pagination.ErrFetchInProgress),
		errors.Is(err, pagination.ErrStaleResponse):
		return http.StatusOK
	default:
		return http.StatusBadGateway
	}
}

// upstreamStatus passes 4xx answers of the API through and reports
// everything else as a bad gateway.
func upstreamStatus(err error) int {
	if code := client.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
