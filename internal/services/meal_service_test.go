package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ateria/internal/billing"
	"ateria/internal/core"
	"ateria/internal/export/memory"
	"ateria/internal/storage"
)

func newTestService(t *testing.T) (*MealService, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	mirror := memory.New()
	svc := NewMealService(repo, billing.NewRecomputer(repo, mirror), nil)
	t.Cleanup(func() { svc.Close() })
	return svc, mirror
}

func addLunchRule(t *testing.T, svc *MealService, normalCents int64) core.PriceRule {
	t.Helper()
	rule, err := core.NewPriceRule(core.SlotLunch,
		core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31),
		core.Money{Cents: normalCents},
		core.Money{Cents: normalCents / 2},
		core.Money{Cents: normalCents / 4},
		false, "", "")
	if err != nil {
		t.Fatalf("NewPriceRule: %v", err)
	}
	if _, err := svc.AddPriceRule(context.Background(), rule); err != nil {
		t.Fatalf("AddPriceRule: %v", err)
	}
	return rule
}

func TestAddUserAndAllergies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	users, err := svc.AddUser(ctx, "Virtanen", core.Money{Cents: -2500}, nil)
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
	userID := users[0].ID

	if _, err := svc.AddUser(ctx, "  ", core.Money{}, nil); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("blank name: got %v, want ErrEmptyName", err)
	}

	if _, err := svc.AddUserAllergy(ctx, userID,
		core.AllergyProfile{Name: "Aino", Allergies: []string{"lactose"}}); err != nil {
		t.Fatalf("AddUserAllergy: %v", err)
	}

	user, err := svc.UserByID(ctx, userID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if len(user.Profiles) != 1 {
		t.Errorf("profiles = %+v", user.Profiles)
	}
	if _, err := svc.UserByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestAddPriceRuleRecomputesInline(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// A registration saved before any rule exists bills at zero.
	reg := core.NewRegistration("u1", 2024, 3, 15, &core.FoodRecord{Normal: 2}, nil, nil)
	if _, err := svc.SaveDay(ctx, reg); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	payments, err := svc.PaymentsOfYear(ctx, "u1", 2024)
	if err != nil {
		t.Fatalf("PaymentsOfYear: %v", err)
	}
	if got := findPayment(t, payments, "u1-2024-03").Amount.Cents; got != 0 {
		t.Fatalf("pre-rule monthly amount = %d, want 0", got)
	}

	// Without a broker the rule's recompute runs inline, so the monthly
	// entry reflects the new price as soon as AddPriceRule returns.
	rule := addLunchRule(t, svc, 500)
	if rule.ID == "" {
		t.Fatal("rule id missing")
	}

	payments, err = svc.PaymentsOfYear(ctx, "u1", 2024)
	if err != nil {
		t.Fatalf("PaymentsOfYear after rule: %v", err)
	}
	if got := findPayment(t, payments, "u1-2024-03").Amount.Cents; got != -1000 {
		t.Errorf("monthly amount = %d, want -1000", got)
	}
	if got := findPayment(t, payments, "u1-2024").Amount.Cents; got != -1000 {
		t.Errorf("yearly amount = %d, want -1000", got)
	}
}

func TestSaveDayReturnsMonthView(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addLunchRule(t, svc, 500)

	otherUser := core.NewRegistration("u2", 2024, 3, 15,
		&core.FoodRecord{Normal: 3}, nil, &core.FoodRecord{Normal: 1})
	if _, err := svc.SaveDay(ctx, otherUser); err != nil {
		t.Fatalf("SaveDay u2: %v", err)
	}

	reg := core.NewRegistration("u1", 2024, 3, 15,
		&core.FoodRecord{Normal: 2}, &core.FoodRecord{Normal: 2}, nil)
	view, err := svc.SaveDay(ctx, reg)
	if err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	if view.Year != 2024 || view.Month != 3 {
		t.Errorf("view month = %d-%d", view.Year, view.Month)
	}
	if len(view.Days) != 1 || view.Days[0].Num != 15 {
		t.Fatalf("view.Days = %+v", view.Days)
	}
	if view.Days[0].Lunch == nil || view.Days[0].Lunch.Normal != 2 {
		t.Errorf("day lunch = %+v", view.Days[0].Lunch)
	}

	// Headcount of the day is the largest slot total across all users:
	// lunch 2+3=5, coffee 2, dinner 1.
	if len(view.AllDays) != 1 || view.AllDays[0].Num != 15 || view.AllDays[0].Count != 5 {
		t.Errorf("view.AllDays = %+v", view.AllDays)
	}

	if _, err := svc.SaveDay(ctx, core.NewRegistration("u1", 2024, 13, 1, nil, nil, nil)); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("bad month: got %v, want ErrInvalidMonth", err)
	}
}

func TestKitchenDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, reg := range []core.Registration{
		core.NewRegistration("u1", 2024, 3, 15, &core.FoodRecord{Normal: 2}, nil, nil),
		core.NewRegistration("u2", 2024, 3, 15, &core.FoodRecord{Normal: 1}, nil, &core.FoodRecord{Child: 1}),
		core.NewRegistration("u3", 2024, 3, 16, &core.FoodRecord{Normal: 1}, nil, nil),
	} {
		if _, err := svc.SaveDay(ctx, reg); err != nil {
			t.Fatalf("SaveDay: %v", err)
		}
	}

	day, err := svc.KitchenDay(ctx, 2024, 3, 15)
	if err != nil {
		t.Fatalf("KitchenDay: %v", err)
	}
	if len(day.Lunch) != 2 {
		t.Errorf("lunch servings = %+v", day.Lunch)
	}
	if len(day.Coffee) != 0 {
		t.Errorf("coffee servings = %+v", day.Coffee)
	}
	if len(day.Dinner) != 1 || day.Dinner[0].UserID != "u2" {
		t.Errorf("dinner servings = %+v", day.Dinner)
	}

	if _, err := svc.KitchenDay(ctx, 2024, 2, 30); !errors.Is(err, core.ErrInvalidDay) {
		t.Errorf("bad day: got %v, want ErrInvalidDay", err)
	}
}

func TestSavePayment(t *testing.T) {
	svc, mirror := newTestService(t)
	ctx := context.Background()

	deposit := core.NewIndividualPayment("", "u1", core.NewDate(2024, 5, 1),
		core.Money{Cents: 5000}, "deposit")
	payments, err := svc.SavePayment(ctx, deposit)
	if err != nil {
		t.Fatalf("SavePayment: %v", err)
	}

	// The deposit plus the refreshed yearly balance.
	if len(payments) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(payments), payments)
	}
	if got := findPayment(t, payments, "u1-2024").Amount.Cents; got != 5000 {
		t.Errorf("yearly balance = %d, want 5000", got)
	}

	// The yearly recompute mirrors its entry to the statement writer.
	if entries := mirror.Entries(); len(entries) != 1 || entries[0].ID != "u1-2024" {
		t.Errorf("mirror entries = %+v", entries)
	}

	// Derived entries cannot be written through the payment endpoint.
	monthly := core.NewMonthlyPayment("u1", 2024, 5, core.Money{Cents: -100})
	if _, err := svc.SavePayment(ctx, monthly); err == nil {
		t.Error("derived entry accepted")
	}
}

func findPayment(t *testing.T, entries []core.PaymentEntry, id string) core.PaymentEntry {
	t.Helper()
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entry %q not in %+v", id, entries)
	return core.PaymentEntry{}
}
