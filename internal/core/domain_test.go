package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Errorf("got %d-%d-%d, want 2024-2-29", d.Year(), d.Month(), d.Day())
	}
	if d.String() != "2024-02-29" {
		t.Errorf("String() = %q, want 2024-02-29", d.String())
	}

	if _, err := ParseDate("not-a-date"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 7, 15)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-07-15"` {
		t.Errorf("marshal = %s, want \"2024-07-15\"", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip changed date: %s != %s", back, d)
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29}, // leap year
		{2023, 2, 28},
		{2024, 1, 31},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestFoodRecordCategoryCount(t *testing.T) {
	record := FoodRecord{
		Normal: 2,
		Young:  1,
		Special: []SpecialItem{
			{Base: CategoryNormal, Count: 1, Allergies: []string{"gluten"}},
			{Base: CategoryChild, Count: 2},
		},
	}

	tests := []struct {
		category Category
		want     int
	}{
		{CategoryNormal, 3}, // 2 direct + 1 special against normal
		{CategoryYoung, 1},
		{CategoryChild, 2}, // special only
	}
	for _, tt := range tests {
		if got := record.CategoryCount(tt.category); got != tt.want {
			t.Errorf("CategoryCount(%s) = %d, want %d", tt.category, got, tt.want)
		}
	}

	if got := record.Headcount(); got != 6 {
		t.Errorf("Headcount() = %d, want 6", got)
	}
}

func TestFoodRecordIsEmpty(t *testing.T) {
	if !(FoodRecord{}).IsEmpty() {
		t.Error("zero record should be empty")
	}
	if (FoodRecord{Normal: 1}).IsEmpty() {
		t.Error("record with a count should not be empty")
	}
	if (FoodRecord{Special: []SpecialItem{{Base: CategoryNormal, Count: 1}}}).IsEmpty() {
		t.Error("record with a special item should not be empty")
	}
}

func TestFoodRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  FoodRecord
		wantErr error
	}{
		{name: "valid", record: FoodRecord{Normal: 1, Young: 2}},
		{name: "negative count", record: FoodRecord{Normal: -1}, wantErr: ErrInvalidCount},
		{name: "bad special base", record: FoodRecord{Special: []SpecialItem{{Base: "vip", Count: 1}}}, wantErr: ErrInvalidCategory},
		{name: "negative special count", record: FoodRecord{Special: []SpecialItem{{Base: CategoryNormal, Count: -1}}}, wantErr: ErrInvalidCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPriceRuleAppliesTo(t *testing.T) {
	rule := PriceRule{
		Slot:  SlotLunch,
		Start: NewDate(2024, 3, 1),
		End:   NewDate(2024, 3, 31),
	}

	tests := []struct {
		name string
		date Date
		slot MealSlot
		want bool
	}{
		{name: "inside range", date: NewDate(2024, 3, 15), slot: SlotLunch, want: true},
		{name: "start inclusive", date: NewDate(2024, 3, 1), slot: SlotLunch, want: true},
		{name: "end inclusive", date: NewDate(2024, 3, 31), slot: SlotLunch, want: true},
		{name: "before range", date: NewDate(2024, 2, 29), slot: SlotLunch, want: false},
		{name: "after range", date: NewDate(2024, 4, 1), slot: SlotLunch, want: false},
		{name: "wrong slot", date: NewDate(2024, 3, 15), slot: SlotDinner, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.AppliesTo(tt.date, tt.slot); got != tt.want {
				t.Errorf("AppliesTo(%s, %s) = %v, want %v", tt.date, tt.slot, got, tt.want)
			}
		})
	}
}

func TestNewPriceRuleValidation(t *testing.T) {
	normal := Money{Cents: 500}

	if _, err := NewPriceRule("brunch", NewDate(2024, 1, 1), NewDate(2024, 1, 31),
		normal, normal, normal, false, "", ""); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("bad slot: got %v, want ErrInvalidSlot", err)
	}

	if _, err := NewPriceRule(SlotLunch, NewDate(2024, 2, 1), NewDate(2024, 1, 1),
		normal, normal, normal, false, "", ""); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("reversed range: got %v, want ErrInvalidDateRange", err)
	}

	if _, err := NewPriceRule(SlotLunch, NewDate(2024, 1, 1), NewDate(2024, 1, 31),
		Money{Cents: -1}, normal, normal, false, "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative price: got %v, want ErrInvalidAmount", err)
	}

	rule, err := NewPriceRule(SlotLunch, NewDate(2024, 1, 1), NewDate(2024, 1, 31),
		Money{}, normal, normal, true, "11:30", "winter special")
	if err != nil {
		t.Fatalf("zero-price override rule should be valid: %v", err)
	}
	if rule.ID == "" {
		t.Error("expected a generated rule id")
	}
	if !rule.Override {
		t.Error("override flag lost")
	}
}

func TestRegistrationValidate(t *testing.T) {
	lunch := &FoodRecord{Normal: 2}

	tests := []struct {
		name    string
		reg     Registration
		wantErr error
	}{
		{name: "valid", reg: NewRegistration("u1", 2024, 3, 15, lunch, nil, nil)},
		{name: "empty user", reg: NewRegistration("  ", 2024, 3, 15, lunch, nil, nil), wantErr: ErrInvalidUserID},
		{name: "month zero", reg: NewRegistration("u1", 2024, 0, 15, lunch, nil, nil), wantErr: ErrInvalidMonth},
		{name: "month thirteen", reg: NewRegistration("u1", 2024, 13, 15, lunch, nil, nil), wantErr: ErrInvalidMonth},
		{name: "day past month end", reg: NewRegistration("u1", 2023, 2, 29, lunch, nil, nil), wantErr: ErrInvalidDay},
		{name: "leap day valid", reg: NewRegistration("u1", 2024, 2, 29, lunch, nil, nil)},
		{name: "bad food record", reg: NewRegistration("u1", 2024, 3, 15, &FoodRecord{Normal: -1}, nil, nil), wantErr: ErrInvalidCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrationTotals(t *testing.T) {
	reg := NewRegistration("u1", 2024, 3, 15,
		&FoodRecord{Normal: 2, Special: []SpecialItem{{Base: CategoryChild, Count: 1}}},
		nil,
		&FoodRecord{Normal: 1})

	want := SlotTotals{Lunch: 3, Coffee: 0, Dinner: 1}
	if reg.Totals != want {
		t.Errorf("Totals = %+v, want %+v", reg.Totals, want)
	}
	if got := reg.MaxHeadcount(); got != 3 {
		t.Errorf("MaxHeadcount() = %d, want 3", got)
	}
}

func TestDerivedPaymentEntries(t *testing.T) {
	monthly := NewMonthlyPayment("u1", 2024, 2, Money{Cents: -1000})
	if monthly.ID != "u1-2024-02" {
		t.Errorf("monthly ID = %q, want u1-2024-02", monthly.ID)
	}
	if monthly.Date.String() != "2024-02-29" {
		t.Errorf("monthly date = %s, want last day of month", monthly.Date)
	}
	if monthly.Label != "February 2024" {
		t.Errorf("monthly label = %q, want February 2024", monthly.Label)
	}
	if monthly.Type != PaymentMonthly {
		t.Errorf("monthly type = %q", monthly.Type)
	}

	yearly := NewYearlyPayment("u1", 2024, Money{Cents: 4000})
	if yearly.ID != "u1-2024" {
		t.Errorf("yearly ID = %q, want u1-2024", yearly.ID)
	}
	if yearly.Date.String() != "2024-12-31" {
		t.Errorf("yearly date = %s, want 2024-12-31", yearly.Date)
	}
	if yearly.Label != "Year 2024" {
		t.Errorf("yearly label = %q, want Year 2024", yearly.Label)
	}
}

func TestNewIndividualPayment(t *testing.T) {
	entry := NewIndividualPayment("", "u1", NewDate(2024, 5, 1), Money{Cents: 5000}, "deposit")
	if entry.ID == "" {
		t.Error("expected a generated id")
	}
	if entry.Type != PaymentIndividual {
		t.Errorf("type = %q, want individual", entry.Type)
	}

	again := NewIndividualPayment("fixed-id", "u1", NewDate(2024, 5, 1), Money{Cents: 5000}, "deposit")
	if again.ID != "fixed-id" {
		t.Errorf("explicit id not kept: %q", again.ID)
	}
}

func TestPaymentEntryValidate(t *testing.T) {
	valid := NewIndividualPayment("", "u1", NewDate(2024, 5, 1), Money{Cents: 100}, "")
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	noUser := valid
	noUser.UserID = " "
	if err := noUser.Validate(); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("missing user: got %v", err)
	}

	badType := valid
	badType.Type = "refund"
	if err := badType.Validate(); err == nil {
		t.Error("unknown type accepted")
	}

	noDate := valid
	noDate.Date = Date{}
	if err := noDate.Validate(); err == nil {
		t.Error("zero date accepted")
	}
}

func TestNewUser(t *testing.T) {
	if _, err := NewUser("  ", Money{}, nil); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name: got %v, want ErrEmptyName", err)
	}

	user, err := NewUser("Virtanen", Money{Cents: -2500}, []AllergyProfile{
		{Name: "Aino", Allergies: []string{"lactose"}},
		{ID: "p1", Name: "Eino", Allergies: []string{"nuts"}},
	})
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if user.ID == "" {
		t.Error("expected a generated user id")
	}
	if len(user.Profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(user.Profiles))
	}
	if _, ok := user.Profiles["p1"]; !ok {
		t.Error("explicit profile id not kept as key")
	}
	for id, prof := range user.Profiles {
		if prof.ID != id {
			t.Errorf("profile %q keyed under %q", prof.ID, id)
		}
	}
}

func TestSortedProfiles(t *testing.T) {
	user := User{Profiles: map[string]AllergyProfile{
		"b": {ID: "b", Name: "second"},
		"a": {ID: "a", Name: "first"},
		"c": {ID: "c", Name: "third"},
	}}
	profiles := user.SortedProfiles()
	if len(profiles) != 3 {
		t.Fatalf("got %d profiles, want 3", len(profiles))
	}
	for i, want := range []string{"a", "b", "c"} {
		if profiles[i].ID != want {
			t.Errorf("profiles[%d].ID = %q, want %q", i, profiles[i].ID, want)
		}
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel(2024, 1); got != "January 2024" {
		t.Errorf("MonthLabel(2024, 1) = %q", got)
	}
	if got := MonthLabel(2024, 0); got != "Error 2024" {
		t.Errorf("MonthLabel(2024, 0) = %q", got)
	}
}
