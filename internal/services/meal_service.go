// Package services orchestrates meal registration and billing operations
// across storage, the billing engine and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ateria/internal/amqp"
	"ateria/internal/billing"
	"ateria/internal/core"
	"ateria/internal/storage"
)

// MealService is the single entry point for the request layer. Writes go to
// SQLite first; recomputation of derived entries follows synchronously for
// single-user triggers and through AMQP for bulk triggers.
type MealService struct {
	storage    *storage.SQLiteRepository
	recomputer *billing.Recomputer
	amqpClient *amqp.Client
}

func NewMealService(storage *storage.SQLiteRepository, recomputer *billing.Recomputer, amqpClient *amqp.Client) *MealService {
	return &MealService{
		storage:    storage,
		recomputer: recomputer,
		amqpClient: amqpClient,
	}
}

// --- users ---

// AddUser creates a user and returns the updated user listing.
func (s *MealService) AddUser(ctx context.Context, name string, archivedBalance core.Money, profiles []core.AllergyProfile) ([]core.User, error) {
	user, err := core.NewUser(name, archivedBalance, profiles)
	if err != nil {
		return nil, err
	}
	if err := s.storage.PutUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", user.ID, "name", user.Name)
	return s.Users(ctx)
}

// AddUserAllergy attaches an allergy profile to a user (replacing a profile
// resubmitted with the same id) and returns the updated user listing.
func (s *MealService) AddUserAllergy(ctx context.Context, userID string, profile core.AllergyProfile) ([]core.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrInvalidUserID
	}
	profile = profile.WithID()
	if err := s.storage.AddUserAllergy(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("add allergy profile: %w", err)
	}
	slog.InfoContext(ctx, "Allergy profile saved",
		"user_id", userID, "profile_id", profile.ID)
	return s.Users(ctx)
}

func (s *MealService) Users(ctx context.Context) ([]core.User, error) {
	return s.storage.Users(ctx)
}

func (s *MealService) UserByID(ctx context.Context, id string) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, core.ErrInvalidUserID
	}
	return s.storage.UserByID(ctx, id)
}

// --- price rules ---

// AddPriceRule persists the rule, triggers recomputation of every month the
// rule spans, and returns the catalog of the rule's start year.
//
// The bulk recompute goes through AMQP so large spans do not block the
// request; without a broker it runs inline.
func (s *MealService) AddPriceRule(ctx context.Context, rule core.PriceRule) ([]core.PriceRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.PutPriceRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("save price rule: %w", err)
	}
	slog.InfoContext(ctx, "Price rule saved",
		"rule_id", rule.ID,
		"slot", string(rule.Slot),
		"start", rule.Start.String(),
		"end", rule.End.String(),
		"override", rule.Override)

	if err := s.publishRecompute(ctx, rule); err != nil {
		slog.WarnContext(ctx, "Recompute message not published, recomputing inline",
			"error", err, "rule_id", rule.ID)
		if err := s.recomputer.OnPriceRuleAdded(ctx, rule); err != nil {
			return nil, fmt.Errorf("recompute after price rule: %w", err)
		}
	}

	return s.storage.PriceRulesByYear(ctx, rule.Start.Year())
}

func (s *MealService) PriceRulesByYear(ctx context.Context, year int) ([]core.PriceRule, error) {
	return s.storage.PriceRulesByYear(ctx, year)
}

func (s *MealService) publishRecompute(ctx context.Context, rule core.PriceRule) error {
	if s.amqpClient == nil {
		return fmt.Errorf("AMQP client not available")
	}
	msg := amqp.NewRecomputeSpanMessage(rule.Start, rule.End, "price-rule:"+rule.ID)
	return s.amqpClient.PublishRecomputeSpan(ctx, msg)
}

// --- registrations ---

// SaveDay stores one user day and synchronously recomputes that user's
// month and year, then returns the refreshed month view.
func (s *MealService) SaveDay(ctx context.Context, reg core.Registration) (MonthView, error) {
	if err := reg.Validate(); err != nil {
		return MonthView{}, err
	}
	if err := s.storage.PutRegistration(ctx, reg); err != nil {
		return MonthView{}, fmt.Errorf("save registration: %w", err)
	}
	slog.InfoContext(ctx, "Registration saved",
		"user_id", reg.UserID,
		"year", reg.Year,
		"month", reg.Month,
		"day", reg.Day)

	if err := s.recomputer.OnRegistrationSaved(ctx, reg.UserID, reg.Year, reg.Month); err != nil {
		return MonthView{}, fmt.Errorf("recompute after registration: %w", err)
	}

	return s.UserMonth(ctx, reg.UserID, reg.Year, reg.Month)
}

// UserMonth returns one user's registrations for a month together with the
// kitchen headcounts of every registered day of that month (all users).
func (s *MealService) UserMonth(ctx context.Context, userID string, year, month int) (MonthView, error) {
	if strings.TrimSpace(userID) == "" {
		return MonthView{}, core.ErrInvalidUserID
	}
	if month < 1 || month > 12 {
		return MonthView{}, core.ErrInvalidMonth
	}

	view := MonthView{Year: year, Month: month}

	userRegs, err := s.storage.RegistrationsByUserMonth(ctx, userID, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read user registrations",
			"error", err, "user_id", userID, "year", year, "month", month)
		return view, nil
	}
	for _, reg := range userRegs {
		view.Days = append(view.Days, DayEntry{
			Num:    reg.Day,
			Lunch:  reg.Lunch,
			Coffee: reg.Coffee,
			Dinner: reg.Dinner,
		})
	}

	allRegs, err := s.storage.RegistrationsByMonth(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read month registrations",
			"error", err, "year", year, "month", month)
		return view, nil
	}
	totals := make(map[int]core.SlotTotals)
	for _, reg := range allRegs {
		t := totals[reg.Day]
		t.Lunch += reg.Totals.Lunch
		t.Coffee += reg.Totals.Coffee
		t.Dinner += reg.Totals.Dinner
		totals[reg.Day] = t
	}
	for day, t := range totals {
		count := t.Lunch
		if t.Coffee > count {
			count = t.Coffee
		}
		if t.Dinner > count {
			count = t.Dinner
		}
		view.AllDays = append(view.AllDays, DayHeadcount{Num: day, Count: count})
	}
	sort.Slice(view.AllDays, func(i, j int) bool {
		return view.AllDays[i].Num < view.AllDays[j].Num
	})

	return view, nil
}

// KitchenDay lists every user's food records for one day, grouped by slot.
func (s *MealService) KitchenDay(ctx context.Context, year, month, day int) (KitchenDay, error) {
	if month < 1 || month > 12 {
		return KitchenDay{}, core.ErrInvalidMonth
	}
	if day < 1 || day > core.DaysInMonth(year, month) {
		return KitchenDay{}, core.ErrInvalidDay
	}

	view := KitchenDay{Year: year, Month: month, Day: day}

	regs, err := s.storage.RegistrationsByDay(ctx, year, month, day)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read day registrations",
			"error", err, "year", year, "month", month, "day", day)
		return view, nil
	}
	for _, reg := range regs {
		if reg.Lunch != nil {
			view.Lunch = append(view.Lunch, SlotServing{UserID: reg.UserID, FoodRecord: *reg.Lunch})
		}
		if reg.Coffee != nil {
			view.Coffee = append(view.Coffee, SlotServing{UserID: reg.UserID, FoodRecord: *reg.Coffee})
		}
		if reg.Dinner != nil {
			view.Dinner = append(view.Dinner, SlotServing{UserID: reg.UserID, FoodRecord: *reg.Dinner})
		}
	}
	return view, nil
}

// --- payments ---

func (s *MealService) PaymentsOfYear(ctx context.Context, userID string, year int) ([]core.PaymentEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrInvalidUserID
	}
	return s.storage.PaymentsByUserYear(ctx, userID, year)
}

// SavePayment stores a user-authored entry and recomputes the yearly
// balance of the entry's year, then returns that year's payments.
func (s *MealService) SavePayment(ctx context.Context, entry core.PaymentEntry) ([]core.PaymentEntry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if entry.Type != core.PaymentIndividual {
		return nil, fmt.Errorf("only individual entries can be saved directly, got %q", entry.Type)
	}
	if err := s.storage.PutPayment(ctx, entry); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	slog.InfoContext(ctx, "Individual payment saved",
		"entry_id", entry.ID,
		"user_id", entry.UserID,
		"amount_cents", entry.Amount.Cents)

	if err := s.recomputer.RecomputeUserYear(ctx, entry.UserID, entry.Date.Year()); err != nil {
		return nil, fmt.Errorf("recompute year after payment: %w", err)
	}

	return s.PaymentsOfYear(ctx, entry.UserID, entry.Date.Year())
}

// Close closes storage and AMQP connections.
func (s *MealService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close meal service: %v", errs)
	}

	return nil
}
