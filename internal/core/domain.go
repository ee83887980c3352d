package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SlotLunch  MealSlot = "lunch"
	SlotCoffee MealSlot = "coffee"
	SlotDinner MealSlot = "dinner"
)

const (
	CategoryNormal Category = "normal"
	CategoryYoung  Category = "young"
	CategoryChild  Category = "child"
)

const (
	PaymentIndividual PaymentType = "individual"
	PaymentMonthly    PaymentType = "monthly"
	PaymentYearly     PaymentType = "yearly"
)

// Slots lists the three chargeable meal slots of a day, in serving order.
var Slots = []MealSlot{SlotLunch, SlotCoffee, SlotDinner}

type (
	// MealSlot is one of the chargeable meals of a day.
	MealSlot string

	// Category is a per-person pricing tier.
	Category string

	PaymentType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// SpecialItem is a meal consumed under a special dietary designation.
	// It is billed against its declared base category.
	SpecialItem struct {
		Base      Category `json:"base"`
		Count     int      `json:"count"`
		Allergies []string `json:"allergies,omitempty"`
	}

	// FoodRecord describes the meals one person consumed in one slot of one
	// day. Absent counts mean zero; a record with no counts and no special
	// items means no meal was taken.
	FoodRecord struct {
		Normal  int           `json:"normal,omitempty"`
		Young   int           `json:"young,omitempty"`
		Child   int           `json:"child,omitempty"`
		Special []SpecialItem `json:"special,omitempty"`
	}

	// PriceRule prices one meal slot for an inclusive calendar date range.
	// A rule with Override set takes precedence over non-override rules
	// covering the same date and slot.
	PriceRule struct {
		ID        string    `json:"id"`
		Slot      MealSlot  `json:"slot"`
		Start     Date      `json:"start"`
		End       Date      `json:"end"`
		Normal    Money     `json:"normal"`
		Young     Money     `json:"young"`
		Child     Money     `json:"child"`
		Override  bool      `json:"special"`
		TimeOfDay string    `json:"time,omitempty"`
		Label     string    `json:"label,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// SlotTotals holds per-slot headcounts for one registration day, derived
	// at save time for the kitchen views.
	SlotTotals struct {
		Lunch  int `json:"lunch"`
		Coffee int `json:"coffee"`
		Dinner int `json:"dinner"`
	}

	// Registration is one person's meal selection for one calendar day.
	// Resubmitting the same day overwrites the previous record.
	Registration struct {
		UserID    string      `json:"userId"`
		Year      int         `json:"year"`
		Month     int         `json:"month"` // 1-12
		Day       int         `json:"day"`
		Lunch     *FoodRecord `json:"lunch,omitempty"`
		Coffee    *FoodRecord `json:"coffee,omitempty"`
		Dinner    *FoodRecord `json:"dinner,omitempty"`
		Totals    SlotTotals  `json:"totals"`
		UpdatedAt time.Time   `json:"updatedAt"`
	}

	// PaymentEntry is one line of a user's balance. Charges are negative.
	// Monthly and yearly entries are derived and keyed deterministically so
	// recomputation overwrites instead of duplicating; individual entries
	// are user-authored.
	PaymentEntry struct {
		ID     string      `json:"id"`
		UserID string      `json:"userId"`
		Date   Date        `json:"date"`
		Amount Money       `json:"amount"`
		Type   PaymentType `json:"type"`
		Label  string      `json:"label"`
	}

	// AllergyProfile names a set of allergies a household member eats under.
	AllergyProfile struct {
		ID        string   `json:"id"`
		Name      string   `json:"name,omitempty"`
		Allergies []string `json:"allergies"`
	}

	// User is a billed household. Profiles is keyed by profile ID.
	User struct {
		ID              string                    `json:"id"`
		Name            string                    `json:"name"`
		ArchivedBalance Money                     `json:"archivedBalance"`
		Profiles        map[string]AllergyProfile `json:"profiles,omitempty"`
	}
)

var (
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidSlot      = errors.New("invalid meal slot")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidCount     = errors.New("negative count")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDateRange = errors.New("rule start after end")
	ErrEmptyName        = errors.New("empty name")
)

func (s MealSlot) Valid() bool {
	return s == SlotLunch || s == SlotCoffee || s == SlotDinner
}

func (c Category) Valid() bool {
	return c == CategoryNormal || c == CategoryYoung || c == CategoryChild
}

// NewDate creates a new Date from year, month (1-12), day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month (1-12)
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysInMonth returns the number of days in the given month (1-12).
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthLabel is the human-readable label of monthly payment entries.
func MonthLabel(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("Error %d", year)
	}
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}

// YearLabel is the human-readable label of yearly payment entries.
func YearLabel(year int) string {
	return fmt.Sprintf("Year %d", year)
}

func (f FoodRecord) Validate() error {
	if f.Normal < 0 || f.Young < 0 || f.Child < 0 {
		return ErrInvalidCount
	}
	for _, sp := range f.Special {
		if !sp.Base.Valid() {
			return ErrInvalidCategory
		}
		if sp.Count < 0 {
			return ErrInvalidCount
		}
	}
	return nil
}

// IsEmpty reports whether the record describes no meal at all.
func (f FoodRecord) IsEmpty() bool {
	return f.Normal == 0 && f.Young == 0 && f.Child == 0 && len(f.Special) == 0
}

// CategoryCount returns the billable count for one category: the direct
// count plus every special item declared against that base category.
func (f FoodRecord) CategoryCount(c Category) int {
	var count int
	switch c {
	case CategoryNormal:
		count = f.Normal
	case CategoryYoung:
		count = f.Young
	case CategoryChild:
		count = f.Child
	}
	for _, sp := range f.Special {
		if sp.Base == c {
			count += sp.Count
		}
	}
	return count
}

// Headcount returns the total number of meals in the record, special items
// included. Used for kitchen totals, not for pricing.
func (f FoodRecord) Headcount() int {
	total := f.Normal + f.Young + f.Child
	for _, sp := range f.Special {
		total += sp.Count
	}
	return total
}

// NewPriceRule builds a validated rule with a generated ID.
func NewPriceRule(slot MealSlot, start, end Date, normal, young, child Money, override bool, timeOfDay, label string) (PriceRule, error) {
	rule := PriceRule{
		ID:        uuid.NewString(),
		Slot:      slot,
		Start:     start,
		End:       end,
		Normal:    normal,
		Young:     young,
		Child:     child,
		Override:  override,
		TimeOfDay: timeOfDay,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return PriceRule{}, err
	}
	return rule, nil
}

func (r PriceRule) Validate() error {
	if !r.Slot.Valid() {
		return ErrInvalidSlot
	}
	if err := r.Start.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := r.End.Validate(); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if r.Start.After(r.End) {
		return ErrInvalidDateRange
	}
	if r.Normal.Cents < 0 || r.Young.Cents < 0 || r.Child.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// AppliesTo reports whether the rule covers the given date and slot. Both
// range ends are inclusive.
func (r PriceRule) AppliesTo(date Date, slot MealSlot) bool {
	if r.Slot != slot {
		return false
	}
	return !date.Before(r.Start) && !date.After(r.End)
}

// PriceFor returns the per-meal price of one category under this rule.
func (r PriceRule) PriceFor(c Category) Money {
	switch c {
	case CategoryYoung:
		return r.Young
	case CategoryChild:
		return r.Child
	default:
		return r.Normal
	}
}

// NewRegistration builds a registration for one user day, deriving the
// per-slot headcount totals. Nil records mean the slot was skipped.
func NewRegistration(userID string, year, month, day int, lunch, coffee, dinner *FoodRecord) Registration {
	headcount := func(f *FoodRecord) int {
		if f == nil {
			return 0
		}
		return f.Headcount()
	}
	return Registration{
		UserID: userID,
		Year:   year,
		Month:  month,
		Day:    day,
		Lunch:  lunch,
		Coffee: coffee,
		Dinner: dinner,
		Totals: SlotTotals{
			Lunch:  headcount(lunch),
			Coffee: headcount(coffee),
			Dinner: headcount(dinner),
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidUserID
	}
	if r.Month < 1 || r.Month > 12 {
		return ErrInvalidMonth
	}
	if r.Day < 1 || r.Day > DaysInMonth(r.Year, r.Month) {
		return ErrInvalidDay
	}
	for _, food := range []*FoodRecord{r.Lunch, r.Coffee, r.Dinner} {
		if food == nil {
			continue
		}
		if err := food.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Food returns the record for one slot, or nil if the slot was skipped.
func (r Registration) Food(slot MealSlot) *FoodRecord {
	switch slot {
	case SlotLunch:
		return r.Lunch
	case SlotCoffee:
		return r.Coffee
	case SlotDinner:
		return r.Dinner
	}
	return nil
}

// MaxHeadcount is the kitchen headcount of the day: the largest slot total.
func (r Registration) MaxHeadcount() int {
	max := r.Totals.Lunch
	if r.Totals.Coffee > max {
		max = r.Totals.Coffee
	}
	if r.Totals.Dinner > max {
		max = r.Totals.Dinner
	}
	return max
}

// MonthlyPaymentID is the deterministic key of a user's monthly entry.
func MonthlyPaymentID(userID string, year, month int) string {
	return fmt.Sprintf("%s-%04d-%02d", userID, year, month)
}

// YearlyPaymentID is the deterministic key of a user's yearly entry.
func YearlyPaymentID(userID string, year int) string {
	return fmt.Sprintf("%s-%04d", userID, year)
}

// NewMonthlyPayment builds the derived monthly entry, dated to the last day
// of the month. Amount is expected to already carry its sign.
func NewMonthlyPayment(userID string, year, month int, amount Money) PaymentEntry {
	return PaymentEntry{
		ID:     MonthlyPaymentID(userID, year, month),
		UserID: userID,
		Date:   NewDate(year, month, DaysInMonth(year, month)),
		Amount: amount,
		Type:   PaymentMonthly,
		Label:  MonthLabel(year, month),
	}
}

// NewYearlyPayment builds the derived yearly balance entry, dated Dec 31.
func NewYearlyPayment(userID string, year int, amount Money) PaymentEntry {
	return PaymentEntry{
		ID:     YearlyPaymentID(userID, year),
		UserID: userID,
		Date:   NewDate(year, 12, 31),
		Amount: amount,
		Type:   PaymentYearly,
		Label:  YearLabel(year),
	}
}

// NewIndividualPayment builds a user-authored entry. An empty id gets a
// generated one; passing an existing id overwrites that entry.
func NewIndividualPayment(id, userID string, date Date, amount Money, label string) PaymentEntry {
	if id == "" {
		id = uuid.NewString()
	}
	return PaymentEntry{
		ID:     id,
		UserID: userID,
		Date:   date,
		Amount: amount,
		Type:   PaymentIndividual,
		Label:  label,
	}
}

func (p PaymentEntry) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidUserID
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	switch p.Type {
	case PaymentIndividual, PaymentMonthly, PaymentYearly:
	default:
		return fmt.Errorf("invalid payment type %q", p.Type)
	}
	return nil
}

// NewUser builds a user with generated IDs for the user and for any profile
// that arrives without one.
func NewUser(name string, archivedBalance Money, profiles []AllergyProfile) (User, error) {
	if strings.TrimSpace(name) == "" {
		return User{}, ErrEmptyName
	}
	byID := make(map[string]AllergyProfile, len(profiles))
	for _, prof := range profiles {
		prof = prof.WithID()
		byID[prof.ID] = prof
	}
	return User{
		ID:              uuid.NewString(),
		Name:            name,
		ArchivedBalance: archivedBalance,
		Profiles:        byID,
	}, nil
}

// WithID returns the profile with a generated ID if it has none.
func (p AllergyProfile) WithID() AllergyProfile {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p
}

// SortedProfiles returns the user's allergy profiles in a stable order
// (by profile ID), for response payloads.
func (u User) SortedProfiles() []AllergyProfile {
	ids := make([]string, 0, len(u.Profiles))
	for id := range u.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	profiles := make([]AllergyProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, u.Profiles[id])
	}
	return profiles
}
