package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Admin actions recorded against user accounts.
const (
	ActionBan                = "BAN"
	ActionUnban              = "UNBAN"
	ActionClose              = "CLOSE"
	ActionVerify             = "VERIFY"
	ActionRemoveVerification = "REMOVE_VERIFICATION"
	ActionResetPassword      = "RESET_PASSWORD"
	ActionClearDevice        = "CLEAR_DEVICE"
	ActionSubscription       = "SUBSCRIPTION"
	ActionUpdateProfile      = "UPDATE_PROFILE"
)

// Entry is one persisted admin action. Reason text collected by the
// console modals lands here instead of being discarded.
type Entry struct {
	ID        int64     `json:"id"`
	ActorID   int       `json:"actor_id"`
	TargetID  int       `json:"target_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder writes audit entries to admin_audit_log and mirrors each one
// as a structured log line.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists one action. Audit failures are logged but never fail
// the admin operation that triggered them.
func (r *Recorder) Record(actorID, targetID int, action, reason string) {
	entry := Entry{
		ActorID:   actorID,
		TargetID:  targetID,
		Action:    action,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	data, _ := json.Marshal(entry)
	log.Printf("AUDIT: %s", string(data))

	_, err := r.db.Exec(`
        INSERT INTO admin_audit_log (actor_id, target_id, action, reason, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, entry.ActorID, entry.TargetID, entry.Action, entry.Reason, entry.CreatedAt)
	if err != nil {
		log.Printf("[AUDIT] Failed to persist audit entry: %v", err)
	}
}

// List returns entries newest-first, optionally restricted to one target
// user, with the total count for pagination.
func (r *Recorder) List(targetID, page, limit int) ([]Entry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	where := ""
	args := []interface{}{}
	if targetID > 0 {
		where = " WHERE target_id = $1"
		args = append(args, targetID)
	}

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM admin_audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// LIMIT/OFFSET are validated ints inlined rather than bound, matching
	// the data access convention used by the user queries.
	query := `
        SELECT id, actor_id, target_id, action, COALESCE(reason, ''), created_at
        FROM admin_audit_log` + where +
		` ORDER BY created_at DESC, id DESC` +
		limitOffsetClause(limit, (page-1)*limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TargetID, &e.Action, &e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func limitOffsetClause(limit, offset int) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
