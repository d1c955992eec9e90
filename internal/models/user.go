package models

import (
	"strconv"
	"strings"
	"time"
)

// Account status values derived from theliveapp_status and deleted_at.
const (
	StatusActive = "active"
	StatusBanned = "banned"
	StatusClosed = "closed"
)

// Subscription display labels.
const (
	SubscriptionPremium = "Premium"
	SubscriptionNone    = "None"
)

// User mirrors a row of the users table. Flag columns are tinyint-style
// ints (0/1) as stored by the consumer app.
type User struct {
	ID              int        `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	LegalFirstName  string     `json:"legal_first_name"`
	LegalLastName   string     `json:"legal_last_name"`
	Nickname        string     `json:"nickname"`
	BirthDay        int        `json:"birth_day"`
	BirthMonth      string     `json:"birth_month"` // month number or month name
	BirthYear       int        `json:"birth_year"`
	Role            int        `json:"role"`
	IsEmailVerified int        `json:"is_email_verified"`
	IsVerified      int        `json:"is_verified"`
	IsSubscription  int        `json:"is_subscription"`
	LiveAppStatus   int        `json:"theliveapp_status"`
	FaceToken       string     `json:"face_token,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at"`
}

// UserView carries the raw row plus the per-request derived fields.
// Consumers never recompute status or age.
type UserView struct {
	User
	LegalName        string    `json:"legalname"`
	Pseudonym        string    `json:"pseudonym"`
	Age              *int      `json:"age"`
	AccountStatus    string    `json:"account_status"`
	SubscriptionType string    `json:"subscription_type"`
	LastLogin        time.Time `json:"last_login"`
	IsBanned         bool      `json:"is_banned"`
}

var monthNumbers = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
}

// MonthNumber resolves a birth_month column value to 1..12. The column
// holds either a numeric string or a month name; unrecognized values
// default to January.
func MonthNumber(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= 12 {
			return n
		}
		return 1
	}
	if n, ok := monthNumbers[strings.ToLower(raw)]; ok {
		return n
	}
	return 1
}

// DeriveAge computes an approximate age from the birth columns relative
// to now. A missing birth year yields nil, as do non-positive results.
func DeriveAge(birthDay int, birthMonth string, birthYear int, now time.Time) *int {
	if birthYear == 0 {
		return nil
	}

	age := now.Year() - birthYear

	month := MonthNumber(birthMonth)
	day := birthDay
	if day == 0 {
		day = 1
	}
	if month > int(now.Month()) || (month == int(now.Month()) && day > now.Day()) {
		age--
	}

	if age <= 0 {
		return nil
	}
	return &age
}

// DeriveAccountStatus applies the fixed precedence: a soft-deleted row is
// closed even if also flagged banned, else theliveapp_status = 0 means
// banned, else active.
func DeriveAccountStatus(deletedAt *time.Time, liveAppStatus int) string {
	if deletedAt != nil {
		return StatusClosed
	}
	if liveAppStatus == 0 {
		return StatusBanned
	}
	return StatusActive
}

// DeriveLegalName joins the legal name parts, dropping empties.
func DeriveLegalName(first, last string) string {
	parts := []string{}
	if first != "" {
		parts = append(parts, first)
	}
	if last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}

// DerivePseudonym prefers nickname, falling back to username.
func DerivePseudonym(nickname, username string) string {
	if nickname != "" {
		return nickname
	}
	return username
}

// View computes all derived fields for a row at the given instant.
func (u User) View(now time.Time) UserView {
	status := DeriveAccountStatus(u.DeletedAt, u.LiveAppStatus)

	subscription := SubscriptionNone
	if u.IsSubscription == 1 {
		subscription = SubscriptionPremium
	}

	return UserView{
		User:             u,
		LegalName:        DeriveLegalName(u.LegalFirstName, u.LegalLastName),
		Pseudonym:        DerivePseudonym(u.Nickname, u.Username),
		Age:              DeriveAge(u.BirthDay, u.BirthMonth, u.BirthYear, now),
		AccountStatus:    status,
		SubscriptionType: subscription,
		LastLogin:        u.UpdatedAt, // no login table; updated_at is the closest signal
		IsBanned:         status == StatusBanned,
	}
}
