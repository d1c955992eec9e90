package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	statsCacheKey = "admin:stats"
	statsCacheTTL = 60 * time.Second
)

type StatsService struct {
	db    *sql.DB
	redis *redis.Client
}

// DashboardStats is the aggregate payload for the console dashboard.
type DashboardStats struct {
	TotalUsers          int `json:"totalUsers"`
	ActiveSubscriptions int `json:"activeSubscriptions"`
	ClosedAccounts      int `json:"closedAccounts"`
	RecentLogins        int `json:"recentLogins"`
}

func NewStatsService(db *sql.DB, redisClient *redis.Client) *StatsService {
	return &StatsService{db: db, redis: redisClient}
}

// GetStats handles GET /users/stats. Counts are cached briefly so the
// dashboard poll does not hammer the users table.
func (s *StatsService) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, statsCacheKey).Result(); err == nil {
			var stats DashboardStats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				SendSuccess(w, stats, "Stats retrieved successfully")
				return
			}
		}
	}

	var stats DashboardStats
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM users WHERE deleted_at IS NULL", &stats.TotalUsers},
		{"SELECT COUNT(*) FROM users WHERE deleted_at IS NULL AND is_subscription = 1", &stats.ActiveSubscriptions},
		{"SELECT COUNT(*) FROM users WHERE deleted_at IS NOT NULL", &stats.ClosedAccounts},
		{"SELECT COUNT(*) FROM users WHERE deleted_at IS NULL AND updated_at >= NOW() - INTERVAL '24 hours'", &stats.RecentLogins},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			log.Printf("[STATS] Query failed: %v", err)
			SendErrorResponse(w, "Failed to retrieve stats", http.StatusInternalServerError, err)
			return
		}
	}

	if s.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.redis.Set(ctx, statsCacheKey, payload, statsCacheTTL).Err(); err != nil {
				log.Printf("[STATS] Cache write failed: %v", err)
			}
		}
	}

	SendSuccess(w, stats, "Stats retrieved successfully")
}
