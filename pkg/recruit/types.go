// Package recruit binds the pagination core to the recruiting API: the job
// posting and resume list endpoints, the current user's profile and the list
// mutations.
package recruit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Sternrassler/recruit-client/pkg/pagination"
)

// Job statuses.
const (
	StatusOpen   = "Open"
	StatusClosed = "Closed"
)

// JobPosting is a published job description.
type JobPosting struct {
	ID          pagination.ID `json:"id"`
	Title       string        `json:"title"`
	CreatorName string        `json:"creator_name,omitempty"`
	Email       string        `json:"email,omitempty"`
	Department  string        `json:"department,omitempty"`
	Location    string        `json:"location,omitempty"`
	Type        string        `json:"type,omitempty"`
	Status      string        `json:"status,omitempty"`
	CreatedAt   string        `json:"created_at,omitempty"`
	S3URL       string        `json:"s3_url,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
}

// UnmarshalJSON decodes a posting, filling the owner from the legacy
// creator_email and hiringManagerName fields when the primary ones are empty.
func (j *JobPosting) UnmarshalJSON(data []byte) error {
	type posting JobPosting
	var raw struct {
		posting
		CreatorEmail      *string `json:"creator_email"`
		HiringManagerName *string `json:"hiringManagerName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*j = JobPosting(raw.posting)
	if strings.TrimSpace(j.Email) == "" && raw.CreatorEmail != nil {
		j.Email = *raw.CreatorEmail
	}
	if strings.TrimSpace(j.CreatorName) == "" && raw.HiringManagerName != nil {
		j.CreatorName = *raw.HiringManagerName
	}
	return nil
}

// ItemID implements pagination.Item.
func (j JobPosting) ItemID() pagination.ID { return j.ID }

// OwnerEmail implements pagination.Owned.
func (j JobPosting) OwnerEmail() string { return j.Email }

// OwnerName implements pagination.Owned.
func (j JobPosting) OwnerName() string { return j.CreatorName }

// IsOpen reports whether the posting accepts candidates. A posting without
// status is open.
func (j JobPosting) IsOpen() bool {
	return j.Status == "" || strings.EqualFold(j.Status, StatusOpen)
}

// Years is a duration in years. It decodes from a JSON number or a numeric
// string; anything else decodes as zero.
type Years float64

// UnmarshalJSON implements json.Unmarshaler.
func (y *Years) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*y = 0
		return nil
	}
	*y = Years(v)
	return nil
}

// ResumeSummary is a parsed resume as listed by the API.
type ResumeSummary struct {
	ID              pagination.ID `json:"id"`
	CandidateName   string        `json:"candidate_name"`
	Email           string        `json:"email,omitempty"`
	ExperienceYears Years         `json:"experience_years"`
	CPDLevel        string        `json:"cpd_level,omitempty"`
	Skills          []string      `json:"skills"`
	S3URL           string        `json:"s3_url,omitempty"`
}

// ItemID implements pagination.Item.
func (r ResumeSummary) ItemID() pagination.ID { return r.ID }

// Profile is the signed-in user.
type Profile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Identity returns the ownership identity of the user.
func (p Profile) Identity() pagination.Identity {
	return pagination.Identity{Email: p.Email, Name: p.Name}
}
