package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Aggregate cache keys follow analytics:<endpoint>:<owner>:<app-scope>:<params...>.
// AppInvalidationPattern must keep matching every key that names an app id,
// regardless of which segment the id lands in.

func EventSummaryKey(ownerID uuid.UUID, appScope, event, start, end string) string {
	return fmt.Sprintf("analytics:event_summary:%s:%s:%s:%s:%s", ownerID, appScope, event, start, end)
}

func UserStatsKey(ownerID uuid.UUID, appScope, endUserID string) string {
	return fmt.Sprintf("analytics:user_stats:%s:%s:%s", ownerID, appScope, endUserID)
}

func DashboardKey(ownerID uuid.UUID, appScope, start, end string) string {
	return fmt.Sprintf("analytics:dashboard:%s:%s:%s:%s", ownerID, appScope, start, end)
}

// AppInvalidationPattern matches every aggregate entry scoped to the app.
// Entries with an "all" app scope don't name the app and age out by TTL.
func AppInvalidationPattern(appID uuid.UUID) string {
	return fmt.Sprintf("analytics:*%s*", appID)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
