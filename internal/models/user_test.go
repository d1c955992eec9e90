package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthNumber(t *testing.T) {
	t.Run("month names", func(t *testing.T) {
		assert.Equal(t, 1, MonthNumber("January"))
		assert.Equal(t, 3, MonthNumber("march"))
		assert.Equal(t, 12, MonthNumber("DECEMBER"))
		assert.Equal(t, 9, MonthNumber(" September "))
	})

	t.Run("numeric strings", func(t *testing.T) {
		assert.Equal(t, 1, MonthNumber("1"))
		assert.Equal(t, 12, MonthNumber("12"))
	})

	t.Run("unknown values default to January", func(t *testing.T) {
		assert.Equal(t, 1, MonthNumber(""))
		assert.Equal(t, 1, MonthNumber("Marchtober"))
		assert.Equal(t, 1, MonthNumber("0"))
		assert.Equal(t, 1, MonthNumber("13"))
	})
}

func TestDeriveAge(t *testing.T) {
	t.Run("birthday not yet reached this year", func(t *testing.T) {
		now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
		age := DeriveAge(15, "March", 1990, now)
		assert.NotNil(t, age)
		assert.Equal(t, 33, *age)
	})

	t.Run("birthday already passed this year", func(t *testing.T) {
		now := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
		age := DeriveAge(15, "March", 1990, now)
		assert.NotNil(t, age)
		assert.Equal(t, 34, *age)
	})

	t.Run("birthday today counts as reached", func(t *testing.T) {
		now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
		age := DeriveAge(15, "March", 1990, now)
		assert.NotNil(t, age)
		assert.Equal(t, 34, *age)
	})

	t.Run("missing year yields nil", func(t *testing.T) {
		now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
		assert.Nil(t, DeriveAge(15, "March", 0, now))
	})

	t.Run("future year yields nil", func(t *testing.T) {
		now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
		assert.Nil(t, DeriveAge(1, "January", 2030, now))
	})

	t.Run("missing day treated as the first", func(t *testing.T) {
		now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		age := DeriveAge(0, "June", 2000, now)
		assert.NotNil(t, age)
		assert.Equal(t, 24, *age)
	})

	t.Run("unknown month treated as January", func(t *testing.T) {
		now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		age := DeriveAge(10, "garbage", 2000, now)
		assert.NotNil(t, age)
		assert.Equal(t, 24, *age)
	})
}

func TestDeriveAccountStatus(t *testing.T) {
	deleted := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active", func(t *testing.T) {
		assert.Equal(t, StatusActive, DeriveAccountStatus(nil, 1))
	})

	t.Run("banned", func(t *testing.T) {
		assert.Equal(t, StatusBanned, DeriveAccountStatus(nil, 0))
	})

	t.Run("closed", func(t *testing.T) {
		assert.Equal(t, StatusClosed, DeriveAccountStatus(&deleted, 1))
	})

	t.Run("closed takes precedence over banned", func(t *testing.T) {
		assert.Equal(t, StatusClosed, DeriveAccountStatus(&deleted, 0))
	})
}

func TestDeriveLegalName(t *testing.T) {
	assert.Equal(t, "Jane Doe", DeriveLegalName("Jane", "Doe"))
	assert.Equal(t, "Jane", DeriveLegalName("Jane", ""))
	assert.Equal(t, "Doe", DeriveLegalName("", "Doe"))
	assert.Equal(t, "", DeriveLegalName("", ""))
}

func TestDerivePseudonym(t *testing.T) {
	assert.Equal(t, "janey", DerivePseudonym("janey", "jdoe"))
	assert.Equal(t, "jdoe", DerivePseudonym("", "jdoe"))
}

func TestUserView(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	updated := now.Add(-2 * time.Hour)

	u := User{
		ID:             7,
		Email:          "jane@example.com",
		Username:       "jdoe",
		LegalFirstName: "Jane",
		LegalLastName:  "Doe",
		Nickname:       "janey",
		BirthDay:       15,
		BirthMonth:     "March",
		BirthYear:      1990,
		IsSubscription: 1,
		LiveAppStatus:  1,
		UpdatedAt:      updated,
	}

	view := u.View(now)

	assert.Equal(t, "Jane Doe", view.LegalName)
	assert.Equal(t, "janey", view.Pseudonym)
	assert.Equal(t, StatusActive, view.AccountStatus)
	assert.Equal(t, SubscriptionPremium, view.SubscriptionType)
	assert.Equal(t, updated, view.LastLogin)
	assert.False(t, view.IsBanned)
	assert.NotNil(t, view.Age)
	assert.Equal(t, 34, *view.Age)

	t.Run("banned view", func(t *testing.T) {
		u.LiveAppStatus = 0
		view := u.View(now)
		assert.Equal(t, StatusBanned, view.AccountStatus)
		assert.True(t, view.IsBanned)
	})

	t.Run("closed view is not banned", func(t *testing.T) {
		deleted := now.Add(-24 * time.Hour)
		u.LiveAppStatus = 0
		u.DeletedAt = &deleted
		view := u.View(now)
		assert.Equal(t, StatusClosed, view.AccountStatus)
		assert.False(t, view.IsBanned)
	})
}
