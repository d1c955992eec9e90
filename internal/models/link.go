package models

import "time"

// Link is the composite view served by the links feature: a 'Link'
// notification enriched with whatever profile_links or posts row matches
// the same id.
type Link struct {
	ID             int       `json:"id"`
	NotificationID int       `json:"notification_id"`
	UserID         int       `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	URL            *string   `json:"url"`
	Status         int       `json:"status"`
	SenderID       int       `json:"sender_id"`
	ReceiverID     int       `json:"receiver_id"`
	SenderName     string    `json:"sender_name"`
	ReceiverName   string    `json:"receiver_name"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
