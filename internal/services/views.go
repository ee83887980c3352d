package services

import "ateria/internal/core"

// DayEntry is one day of a user's month view.
type DayEntry struct {
	Num    int              `json:"num"`
	Lunch  *core.FoodRecord `json:"lunch,omitempty"`
	Coffee *core.FoodRecord `json:"coffee,omitempty"`
	Dinner *core.FoodRecord `json:"dinner,omitempty"`
}

// DayHeadcount is the kitchen headcount of one day across all users: the
// largest per-slot sum of that day.
type DayHeadcount struct {
	Num   int `json:"num"`
	Count int `json:"count"`
}

// MonthView is one user's registrations for a month plus the kitchen
// headcounts of every registered day in that month.
type MonthView struct {
	Year    int            `json:"year"`
	Month   int            `json:"month"`
	Days    []DayEntry     `json:"days"`
	AllDays []DayHeadcount `json:"allDays"`
}

// SlotServing is one user's food record within a kitchen slot listing.
type SlotServing struct {
	UserID string `json:"userId"`
	core.FoodRecord
}

// KitchenDay lists everything to be served on one day, grouped by slot.
type KitchenDay struct {
	Year   int           `json:"year"`
	Month  int           `json:"month"`
	Day    int           `json:"day"`
	Lunch  []SlotServing `json:"lunch"`
	Coffee []SlotServing `json:"coffee"`
	Dinner []SlotServing `json:"dinner"`
}
