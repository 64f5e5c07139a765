// Package capability defines the boundary interfaces for the
// collaborators spec.md scopes out of this repo: token authentication
// and external metadata enrichment. Only in-memory test doubles live
// here; a real HTTP-backed auth store or MusicBrainz/Discogs-style
// fetcher is out of scope.
package capability

import "context"

// AuthCapability validates a client-presented token and resolves it
// to a user id. No session is considered valid until this returns a
// non-empty id.
type AuthCapability interface {
	Authenticate(ctx context.Context, token string) (userID string, ok bool)
}

// EnrichmentResult is what an external metadata lookup would return
// for an artist or album.
type EnrichmentResult struct {
	Summary string
	Genres  []string
	LogoURL string
	Banner  string
}

// EnrichmentCapability fetches metadata for an artist or album from
// an external source.
type EnrichmentCapability interface {
	FetchArtist(ctx context.Context, name string) (EnrichmentResult, error)
	FetchAlbum(ctx context.Context, artist, title string) (EnrichmentResult, error)
}

// StaticAuth is a minimal AuthCapability backed by a fixed token set,
// usable in tests and single-operator deployments.
type StaticAuth struct {
	tokens map[string]string
}

func NewStaticAuth(tokens map[string]string) *StaticAuth {
	return &StaticAuth{tokens: tokens}
}

func (a *StaticAuth) Authenticate(_ context.Context, token string) (string, bool) {
	userID, ok := a.tokens[token]
	return userID, ok
}

// NoopEnrichment is an EnrichmentCapability that never finds anything,
// usable where no external metadata source is configured.
type NoopEnrichment struct{}

func (NoopEnrichment) FetchArtist(context.Context, string) (EnrichmentResult, error) {
	return EnrichmentResult{}, nil
}

func (NoopEnrichment) FetchAlbum(context.Context, string, string) (EnrichmentResult, error) {
	return EnrichmentResult{}, nil
}
