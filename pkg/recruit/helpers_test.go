package recruit

import (
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/recruit-client/internal/testutil"
	"github.com/Sternrassler/recruit-client/pkg/client"
)

func newTestAPI(t *testing.T) (*API, *testutil.MockAPI) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(mock.URL(), "RecruitTest/1.0 (test@example.com)")
	cfg.RateLimit = 0
	cfg.MaxRetries = 0
	cfg.InitialBackoff = time.Millisecond
	cfg.Timeout = 5 * time.Second

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return NewAPI(c), mock
}

// seedJobs fills the mock with n postings; every third one belongs to Ada.
func seedJobs(mock *testutil.MockAPI, n int) {
	jobs := make([]testutil.Record, 0, n)
	for i := 1; i <= n; i++ {
		email, name := "grace@example.com", "Grace"
		if i%3 == 0 {
			email, name = "ada@example.com", "Ada"
		}
		dept := "Engineering"
		if i%2 == 0 {
			dept = "People"
		}
		jobs = append(jobs, testutil.JobRecord(i, fmt.Sprintf("Job %d", i), email, name, dept))
	}
	mock.SetJobs(jobs...)
}
