package models

import (
	"net/url"
	"strconv"
	"strings"
)

// UserFilter is the closed filter set accepted by the listing and export
// endpoints. A non-empty SearchTerm overrides the per-field name/email
// filters.
type UserFilter struct {
	SearchTerm       string
	LegalName        string
	Pseudonym        string // export only
	Email            string
	SubscriptionType string `validate:"omitempty,oneof=Premium premium Paid paid None none Free free FREE PAID"`
	AccountStatus    string `validate:"omitempty,oneof=active banned closed"`
	UserIDs          []int
}

// ParseUserFilter reads filter parameters off a query string. Unknown
// userIds entries are dropped silently.
func ParseUserFilter(q url.Values) UserFilter {
	f := UserFilter{
		SearchTerm:       strings.TrimSpace(q.Get("searchTerm")),
		LegalName:        strings.TrimSpace(q.Get("legalname")),
		Pseudonym:        strings.TrimSpace(q.Get("pseudonym")),
		Email:            strings.TrimSpace(q.Get("email")),
		SubscriptionType: strings.TrimSpace(q.Get("subscription_type")),
		AccountStatus:    strings.ToLower(strings.TrimSpace(q.Get("account_status"))),
	}

	if raw := q.Get("userIds"); raw != "" {
		for _, tok := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				continue
			}
			f.UserIDs = append(f.UserIDs, id)
		}
	}

	return f
}

// WantsSubscribed maps the filter's subscription label onto the raw
// is_subscription flag. The second return is false when no subscription
// filter applies.
func (f UserFilter) WantsSubscribed() (int, bool) {
	switch strings.ToLower(f.SubscriptionType) {
	case "premium", "paid":
		return 1, true
	case "none", "free":
		return 0, true
	}
	return 0, false
}

// Page holds validated pagination inputs.
type Page struct {
	Number int
	Limit  int
}

// ParsePage reads page/limit with the listing defaults.
func ParsePage(q url.Values) Page {
	p := Page{Number: 1, Limit: 10}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n >= 1 {
		p.Number = n
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		p.Limit = l
	}
	return p
}

// Pagination is the summary block returned next to every page of users.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}
