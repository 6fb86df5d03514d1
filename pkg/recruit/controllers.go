package recruit

import (
	"time"

	"github.com/Sternrassler/recruit-client/pkg/pagination"
)

// List names.
const (
	ListJobs    = "jobs"
	ListResumes = "resumes"
)

// ListOptions tunes a list controller. Zero values keep the defaults.
type ListOptions struct {
	PageSize     int
	CountLimit   int
	FetchTimeout time.Duration
}

// NewJobsController creates the job posting list, split into the user's
// own postings and everyone else's, with totals per bucket.
func NewJobsController(api *API, opts ListOptions) *pagination.Controller[JobPosting] {
	cfg := pagination.OwnershipConfig[JobPosting](ListJobs)
	applyOptions(&cfg, opts)
	return pagination.NewController(api.Jobs(), cfg)
}

// NewResumesController creates the resume list as a single bucket.
func NewResumesController(api *API, opts ListOptions) *pagination.Controller[ResumeSummary] {
	cfg := pagination.SingleBucketConfig[ResumeSummary](ListResumes)
	applyOptions(&cfg, opts)
	return pagination.NewController(api.Resumes(), cfg)
}

func applyOptions[T pagination.Item](cfg *pagination.Config[T], opts ListOptions) {
	if opts.PageSize > 0 {
		cfg.PageSize = opts.PageSize
	}
	if opts.CountLimit > 0 {
		cfg.CountLimit = opts.CountLimit
	}
	cfg.FetchTimeout = opts.FetchTimeout
}
