package analytics

import (
	"context"
	"strings"
)

// ViewKind names one cached view of a user's analytics.
type ViewKind string

const (
	ViewRealtime ViewKind = "realtime"
	ViewToday    ViewKind = "today"
	ViewWeek     ViewKind = "week"
	ViewMonth    ViewKind = "month"
	ViewInsights ViewKind = "insights"
)

// ViewKinds lists every cached view.
var ViewKinds = []ViewKind{ViewRealtime, ViewToday, ViewWeek, ViewMonth, ViewInsights}

// CacheKeyPrefix is the namespace shared by every analytics cache key.
const CacheKeyPrefix = "analytics:"

// CacheKey returns "analytics:<user>:<kind>".
func CacheKey(userID string, kind ViewKind) string {
	return UserKeyPrefix(userID) + string(kind)
}

// UserKeyPrefix returns the prefix of every key belonging to userID.
// Another user's id may extend it ("u1" and "u1:x"), so match whole keys
// with UserKeys or IsUserKey instead.
func UserKeyPrefix(userID string) string {
	return CacheKeyPrefix + userID + ":"
}

// UserKeys returns every cache key of userID.
func UserKeys(userID string) []string {
	keys := make([]string, len(ViewKinds))
	for i, kind := range ViewKinds {
		keys[i] = CacheKey(userID, kind)
	}
	return keys
}

// IsUserKey reports whether key is one of userID's view keys.
func IsUserKey(key, userID string) bool {
	kind, ok := strings.CutPrefix(key, UserKeyPrefix(userID))
	if !ok {
		return false
	}
	for _, k := range ViewKinds {
		if kind == string(k) {
			return true
		}
	}
	return false
}

// ViewCache stores computed views under CacheKey keys.
//
// An entry is returned only while it is younger than the cache TTL. Cache
// failures never surface to callers: a broken cache behaves as a miss.
type ViewCache interface {
	// Get decodes the entry under key into dest and reports whether it was a hit.
	Get(ctx context.Context, key string, dest any) bool

	// Put stores value under key with the cache TTL.
	Put(ctx context.Context, key string, value any)

	// InvalidateUser drops every entry of userID.
	InvalidateUser(ctx context.Context, userID string)
}
