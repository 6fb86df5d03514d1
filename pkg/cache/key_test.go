package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key: CacheKey{
				Endpoint: "/user/profile/",
			},
			want: "recruit:user/profile",
		},
		{
			name: "page query",
			key: CacheKey{
				Endpoint: "/jobs/list/",
				QueryParams: url.Values{
					"offset": []string{"24"},
					"limit":  []string{"12"},
				},
			},
			want: "recruit:jobs/list:limit=12:offset=24",
		},
		{
			name: "filtered page for a user",
			key: CacheKey{
				Endpoint: "/jobs/list/",
				QueryParams: url.Values{
					"department": []string{"Engineering"},
					"limit":      []string{"12"},
					"offset":     []string{"0"},
				},
				Principal: " A@X.com ",
			},
			want: "recruit:jobs/list:department=Engineering:limit=12:offset=0:user=a@x.com",
		},
		{
			name: "multi-valued query",
			key: CacheKey{
				Endpoint:    "/resumes/",
				QueryParams: url.Values{"skill": []string{"go", "sql"}},
			},
			want: "recruit:resumes:skill=go,sql",
		},
		{
			name: "empty endpoint",
			key:  CacheKey{},
			want: "recruit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "/jobs/list/",
		QueryParams: url.Values{
			"department": []string{"Sales"},
			"limit":      []string{"12"},
			"offset":     []string{"36"},
		},
		Principal: "a@x.com",
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestEndpointPattern(t *testing.T) {
	if got := EndpointPattern("/jobs/list/"); got != "recruit:jobs/list:*" {
		t.Errorf("EndpointPattern() = %v", got)
	}
}

func TestCacheKey_PrincipalsDoNotShare(t *testing.T) {
	a := CacheKey{Endpoint: "/jobs/list/", Principal: "a@x.com"}
	b := CacheKey{Endpoint: "/jobs/list/", Principal: "b@x.com"}
	if a.String() == b.String() {
		t.Error("keys for different users collide")
	}
}
