package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ErrMalformedPage is returned when a page body is not JSON at all.
var ErrMalformedPage = errors.New("malformed page response")

// PageRequest is one page worth of list query.
type PageRequest struct {
	Limit  int
	Offset int
	Filter string
}

// Validate checks the request bounds.
func (r PageRequest) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("limit must be > 0 (got %d)", r.Limit)
	}
	if r.Offset < 0 {
		return fmt.Errorf("offset must be >= 0 (got %d)", r.Offset)
	}
	return nil
}

// Query renders the request as list endpoint query parameters.
// The filter is only sent when both the key and the value are non-empty.
func (r PageRequest) Query(filterKey string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(r.Limit))
	q.Set("offset", strconv.Itoa(r.Offset))
	if filterKey != "" && r.Filter != "" {
		q.Set(filterKey, r.Filter)
	}
	return q
}

// PageResponse is one decoded page. A nil NextOffset is the only
// termination signal.
type PageResponse[T any] struct {
	Results    []T  `json:"results"`
	NextOffset *int `json:"next_offset"`
}

// HasMore reports whether another page exists.
func (p PageResponse[T]) HasMore() bool {
	return p.NextOffset != nil
}

// DecodePage decodes a list endpoint body.
//
// Missing or non-array results decode as an empty page and a missing or
// unusable next_offset decodes as terminal. A top-level array is accepted as
// a single terminal page, and "data" is accepted in place of "results".
// Elements that fail to decode or carry no identifier are dropped.
func DecodePage[T Item](data []byte) (PageResponse[T], error) {
	var page PageResponse[T]

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return page, fmt.Errorf("%w: empty body", ErrMalformedPage)
	}
	if !json.Valid(trimmed) {
		return page, fmt.Errorf("%w: body is not JSON", ErrMalformedPage)
	}

	var rawResults json.RawMessage
	switch trimmed[0] {
	case '[':
		rawResults = trimmed
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return page, fmt.Errorf("%w: %v", ErrMalformedPage, err)
		}
		rawResults = envelope["results"]
		if !isArray(rawResults) {
			rawResults = envelope["data"]
		}
		page.NextOffset = decodeOffset(envelope["next_offset"])
	default:
		// JSON scalar: nothing usable, terminal empty page.
		page.Results = []T{}
		return page, nil
	}

	page.Results = decodeItems[T](rawResults)
	return page, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func decodeItems[T Item](raw json.RawMessage) []T {
	items := []T{}
	if !isArray(raw) {
		return items
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		log.Debug().Err(err).Msg("Page results not decodable, treating as empty")
		return items
	}

	for i, elem := range elems {
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			log.Debug().Err(err).Int("index", i).Msg("Dropping undecodable item")
			continue
		}
		if item.ItemID() == "" {
			log.Debug().Int("index", i).Msg("Dropping item without identifier")
			continue
		}
		items = append(items, item)
	}
	return items
}

// decodeOffset returns nil for anything that is not a non-negative integer.
func decodeOffset(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == 'n' {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}

	n := int(f)
	return &n
}
