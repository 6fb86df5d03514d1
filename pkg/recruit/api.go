package recruit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/recruit-client/pkg/client"
	"github.com/Sternrassler/recruit-client/pkg/pagination"
)

// API endpoints.
const (
	PathProfile      = "/user/profile/"
	PathJobs         = "/jobs/list/"
	PathResumes      = "/resumes/"
	PathJobDelete    = "/jobs/delete/"
	PathJobStatus    = "/jobs/status/"
	PathResumeDelete = "/resumes/delete/"
)

// Filter query parameters of the list endpoints.
const (
	FilterDepartment = "department"
	FilterQuery      = "q"
)

// API is the recruiting API on top of the HTTP client.
type API struct {
	client *client.Client
	logger zerolog.Logger
}

// NewAPI creates the API over c.
func NewAPI(c *client.Client) *API {
	return &API{
		client: c,
		logger: log.With().Str("component", "recruit-api").Logger(),
	}
}

// Client returns the underlying HTTP client.
func (a *API) Client() *client.Client {
	return a.client
}

// Profile fetches the signed-in user. Responses cached afterwards are keyed
// by the user's email.
func (a *API) Profile(ctx context.Context) (Profile, error) {
	data, err := a.client.GetBytes(ctx, PathProfile, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	a.client.SetPrincipal(p.Email)
	return p, nil
}

// Jobs returns the job posting list source. The filter is a department.
func (a *API) Jobs() pagination.Source[JobPosting] {
	return &listSource[JobPosting]{api: a, path: PathJobs, filterKey: FilterDepartment}
}

// Resumes returns the resume list source. The filter is a search query.
func (a *API) Resumes() pagination.Source[ResumeSummary] {
	return &listSource[ResumeSummary]{api: a, path: PathResumes, filterKey: FilterQuery}
}

// DeleteJob deletes a job posting.
func (a *API) DeleteJob(ctx context.Context, id pagination.ID) error {
	if _, err := a.mutate(ctx, http.MethodDelete, PathJobDelete, id, PathJobs); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// ToggleJobStatus flips a posting between Open and Closed and returns the
// new status.
func (a *API) ToggleJobStatus(ctx context.Context, id pagination.ID) (string, error) {
	data, err := a.mutate(ctx, http.MethodPatch, PathJobStatus, id, PathJobs)
	if err != nil {
		return "", fmt.Errorf("toggle job %s: %w", id, err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode job %s status: %w", id, err)
	}
	if resp.Status == "" {
		return "", fmt.Errorf("job %s: status missing from response", id)
	}
	return resp.Status, nil
}

// DeleteResume deletes a resume.
func (a *API) DeleteResume(ctx context.Context, id pagination.ID) error {
	if _, err := a.mutate(ctx, http.MethodDelete, PathResumeDelete, id, PathResumes); err != nil {
		return fmt.Errorf("delete resume %s: %w", id, err)
	}
	return nil
}

// mutate sends a request to prefix+id and drops the cached pages of the
// list the item belongs to.
func (a *API) mutate(ctx context.Context, method, prefix string, id pagination.ID, list string) ([]byte, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("empty id")
	}

	data, err := a.client.Send(ctx, method, prefix+url.PathEscape(string(id))+"/", nil)
	if err != nil {
		// Without an answer the server may still have applied the change.
		if code := client.StatusCode(err); code < 400 || code >= 500 {
			a.invalidate(ctx, list)
		}
		return nil, err
	}

	a.invalidate(ctx, list)
	return data, nil
}

func (a *API) invalidate(ctx context.Context, list string) {
	if err := a.client.Invalidate(ctx, list); err != nil {
		a.logger.Warn().Err(err).Str("endpoint", list).Msg("Failed to invalidate cached list")
	}
}

// listSource serves pages of a list endpoint.
type listSource[T pagination.Item] struct {
	api       *API
	path      string
	filterKey string
}

// List implements pagination.Source.
func (s *listSource[T]) List(ctx context.Context, req pagination.PageRequest) (pagination.PageResponse[T], error) {
	if err := req.Validate(); err != nil {
		return pagination.PageResponse[T]{}, err
	}

	data, err := s.api.client.GetBytes(ctx, s.path, req.Query(s.filterKey))
	if err != nil {
		return pagination.PageResponse[T]{}, err
	}

	page, err := pagination.DecodePage[T](data)
	if err != nil {
		return pagination.PageResponse[T]{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return page, nil
}
