package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies an item within one collection.
// The list endpoints emit both numeric and string identifiers, so ID
// unmarshals from either and compares as a string.
type ID string

// UnmarshalJSON accepts a JSON string or number. null yields the empty ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits integer-looking IDs as numbers so the round trip
// keeps the server's representation.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Item is a record held in an accumulated list.
type Item interface {
	ItemID() ID
}

// Owned is implemented by items that carry ownership attributes.
// Missing values are reported as empty strings.
type Owned interface {
	Item
	OwnerEmail() string
	OwnerName() string
}

// Identity is the current user as far as ownership is concerned.
// The zero value means the user is not known yet.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Known reports whether any identity attribute is set.
func (i Identity) Known() bool {
	return strings.TrimSpace(i.Email) != "" || strings.TrimSpace(i.Name) != ""
}

// Equal compares identities after normalization.
func (i Identity) Equal(other Identity) bool {
	return normalize(i.Email) == normalize(other.Email) &&
		normalize(i.Name) == normalize(other.Name)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
