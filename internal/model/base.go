package model

import (
	"time"
)

// Timestamps contains the audit columns shared by mutable tables
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DateRange is a half-open [From, To) interval
type DateRange struct {
	From time.Time
	To   time.Time
}

// MonthOf returns the calendar month containing t, in t's location.
func MonthOf(t time.Time) DateRange {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{From: from, To: from.AddDate(0, 1, 0)}
}

// DayOf returns the calendar day containing t, in t's location.
func DayOf(t time.Time) DateRange {
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{From: from, To: from.AddDate(0, 0, 1)}
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}
