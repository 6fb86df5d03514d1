package recruit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/recruit-client/pkg/pagination"
	"github.com/Sternrassler/recruit-client/pkg/session"
)

// ProfileCacheKey is the session key of the last known profile.
const ProfileCacheKey = "profile"

// ProfileSource fetches the signed-in user.
type ProfileSource interface {
	Profile(ctx context.Context) (Profile, error)
}

// IdentityTarget receives identity updates, e.g. a list controller.
type IdentityTarget interface {
	SetIdentity(ctx context.Context, identity pagination.Identity) error
}

// IdentityResolver determines the current user: the last known profile from
// the session store is used right away, the network answer replaces it and
// is written back.
type IdentityResolver struct {
	source ProfileSource
	cache  *session.Cache[Profile]
	logger zerolog.Logger

	mu      sync.RWMutex
	current Profile
	known   bool
}

// NewIdentityResolver creates a resolver. store may be nil, which disables
// the cached fast path.
func NewIdentityResolver(source ProfileSource, store session.Store) *IdentityResolver {
	r := &IdentityResolver{
		source: source,
		logger: log.With().Str("component", "identity-resolver").Logger(),
	}
	if store != nil {
		r.cache = session.NewCache[Profile](store, ProfileCacheKey)
	}
	return r
}

// Current returns the profile known so far.
func (r *IdentityResolver) Current() (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.known
}

// Resolve hydrates from the session store, then fetches the profile. Every
// target is updated with the cached identity first and again with the
// network identity. When the network fetch fails the cached profile stays
// current and the error is returned.
func (r *IdentityResolver) Resolve(ctx context.Context, targets ...IdentityTarget) (Profile, error) {
	if cached, ok := r.hydrate(ctx); ok {
		r.apply(ctx, cached, targets)
	}

	profile, err := r.source.Profile(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Profile fetch failed, keeping cached identity")
		current, _ := r.Current()
		return current, err
	}

	r.set(profile)
	if r.cache != nil {
		if err := r.cache.Save(ctx, profile); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to persist profile")
		}
	}
	r.apply(ctx, profile, targets)
	return profile, nil
}

// Forget drops the current and persisted profile.
func (r *IdentityResolver) Forget(ctx context.Context) error {
	r.mu.Lock()
	r.current = Profile{}
	r.known = false
	r.mu.Unlock()

	if r.cache == nil {
		return nil
	}
	return r.cache.Clear(ctx)
}

func (r *IdentityResolver) hydrate(ctx context.Context) (Profile, bool) {
	if r.cache == nil {
		return Profile{}, false
	}

	cached, ok, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to load cached profile")
		return Profile{}, false
	}
	if !ok {
		return Profile{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known {
		return Profile{}, false
	}
	r.current = cached
	r.known = true
	return cached, true
}

func (r *IdentityResolver) set(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = p
	r.known = true
}

func (r *IdentityResolver) apply(ctx context.Context, p Profile, targets []IdentityTarget) {
	for _, t := range targets {
		if err := t.SetIdentity(ctx, p.Identity()); err != nil {
			r.logger.Warn().Err(err).Msg("Identity update failed")
		}
	}
}
