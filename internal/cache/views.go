package cache

import "context"

// GetOrRefreshToken returns the user's cached access token, invoking
// refresh and caching its result on a miss.
func (l *Layer) GetOrRefreshToken(ctx context.Context, userID string, refresh func(context.Context) ([]byte, error)) ([]byte, error) {
	return l.GetOrLoad(ctx, FamilyToken, userID, refresh)
}

// GetProfile returns the user's cached profile snapshot, loading from
// the system of record on a miss.
func (l *Layer) GetProfile(ctx context.Context, userID string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	return l.GetOrLoad(ctx, FamilyProfile, userID, load)
}
