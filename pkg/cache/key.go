package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key in Redis.
const keyPrefix = "recruit"

// CacheKey identifies a cached API response.
type CacheKey struct {
	// Endpoint is the API path (e.g. "/jobs/list/").
	Endpoint string

	// QueryParams are the request's query parameters (limit, offset, filter).
	QueryParams url.Values

	// Principal is the user the response was served to. List payloads depend
	// on the caller, so responses are never shared between users.
	// Empty for anonymous requests.
	Principal string
}

// String generates a deterministic cache key string.
// Format: recruit:endpoint:query1=val1:query2=val2:user=principal
//
// Example:
//
//	recruit:jobs/list:department=Engineering:limit=12:offset=24:user=a@x.com
func (k CacheKey) String() string {
	parts := []string{endpointPrefix(k.Endpoint)}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
		}
	}

	if p := strings.ToLower(strings.TrimSpace(k.Principal)); p != "" {
		parts = append(parts, "user="+p)
	}

	return strings.Join(parts, ":")
}

// EndpointPattern returns the Redis match pattern covering every cached
// response of endpoint, for any query and any user.
func EndpointPattern(endpoint string) string {
	return endpointPrefix(endpoint) + ":*"
}

func endpointPrefix(endpoint string) string {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" {
		return keyPrefix
	}
	return keyPrefix + ":" + endpoint
}
