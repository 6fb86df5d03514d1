package pagination

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPageRequest_Query(t *testing.T) {
	tests := []struct {
		name      string
		req       PageRequest
		filterKey string
		want      string
	}{
		{
			name: "no filter",
			req:  PageRequest{Limit: 12, Offset: 0},
			want: "limit=12&offset=0",
		},
		{
			name:      "with filter",
			req:       PageRequest{Limit: 12, Offset: 24, Filter: "Human Resources"},
			filterKey: "department",
			want:      "department=Human+Resources&limit=12&offset=24",
		},
		{
			name: "filter without key is dropped",
			req:  PageRequest{Limit: 5, Offset: 5, Filter: "x"},
			want: "limit=5&offset=5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Query(tt.filterKey).Encode()
			if got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageRequest_Validate(t *testing.T) {
	if err := (PageRequest{Limit: 1}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := (PageRequest{Limit: 0}).Validate(); err == nil {
		t.Error("Validate() should reject limit 0")
	}
	if err := (PageRequest{Limit: 1, Offset: -1}).Validate(); err == nil {
		t.Error("Validate() should reject negative offset")
	}
}

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantIDs  []ID
		wantNext *int
	}{
		{
			name:     "regular page",
			body:     `{"results":[{"id":1},{"id":"abc"}],"next_offset":12}`,
			wantIDs:  []ID{"1", "abc"},
			wantNext: intPtr(12),
		},
		{
			name:    "terminal page",
			body:    `{"results":[{"id":7}],"next_offset":null}`,
			wantIDs: []ID{"7"},
		},
		{
			name:    "missing next_offset is terminal",
			body:    `{"results":[{"id":7}]}`,
			wantIDs: []ID{"7"},
		},
		{
			name:     "missing results is empty",
			body:     `{"next_offset":24}`,
			wantIDs:  []ID{},
			wantNext: intPtr(24),
		},
		{
			name:     "data fallback",
			body:     `{"data":[{"id":3}],"next_offset":3}`,
			wantIDs:  []ID{"3"},
			wantNext: intPtr(3),
		},
		{
			name:    "top-level array",
			body:    `[{"id":1},{"id":2}]`,
			wantIDs: []ID{"1", "2"},
		},
		{
			name:    "string next_offset is terminal",
			body:    `{"results":[],"next_offset":"12"}`,
			wantIDs: []ID{},
		},
		{
			name:    "negative next_offset is terminal",
			body:    `{"results":[],"next_offset":-1}`,
			wantIDs: []ID{},
		},
		{
			name:    "fractional next_offset is terminal",
			body:    `{"results":[],"next_offset":1.5}`,
			wantIDs: []ID{},
		},
		{
			name:    "items without id are dropped",
			body:    `{"results":[{"title":"x"},{"id":null},{"id":4}]}`,
			wantIDs: []ID{"4"},
		},
		{
			name:    "undecodable items are dropped",
			body:    `{"results":[{"id":{"nested":true}},{"id":5}]}`,
			wantIDs: []ID{"5"},
		},
		{
			name:    "results of wrong type",
			body:    `{"results":{"id":1}}`,
			wantIDs: []ID{},
		},
		{
			name:    "scalar body",
			body:    `true`,
			wantIDs: []ID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodePage[testJob]([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodePage() error = %v", err)
			}
			if got := ids(page.Results); !equalIDs(got, tt.wantIDs) {
				t.Errorf("results = %v, want %v", got, tt.wantIDs)
			}
			switch {
			case tt.wantNext == nil && page.NextOffset != nil:
				t.Errorf("next_offset = %d, want null", *page.NextOffset)
			case tt.wantNext != nil && page.NextOffset == nil:
				t.Errorf("next_offset = null, want %d", *tt.wantNext)
			case tt.wantNext != nil && *page.NextOffset != *tt.wantNext:
				t.Errorf("next_offset = %d, want %d", *page.NextOffset, *tt.wantNext)
			}
			if page.HasMore() != (tt.wantNext != nil) {
				t.Errorf("HasMore() = %v", page.HasMore())
			}
		})
	}
}

func TestDecodePage_Malformed(t *testing.T) {
	for _, body := range []string{"", "   ", "<html>", `{"results":[`} {
		_, err := DecodePage[testJob]([]byte(body))
		if !errors.Is(err, ErrMalformedPage) {
			t.Errorf("DecodePage(%q) error = %v, want ErrMalformedPage", body, err)
		}
	}
}

func TestID_JSON(t *testing.T) {
	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"7f3c","c":null}`), &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.A != "42" || got.B != "7f3c" || got.C != "" {
		t.Errorf("decoded = %+v", got)
	}

	out, err := json.Marshal(map[string]ID{"n": "42", "s": "7f3c"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != `{"n":42,"s":"7f3c"}` {
		t.Errorf("Marshal = %s", out)
	}
}
