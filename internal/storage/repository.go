// Package storage persists users, price rules, registrations and payment
// entries in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ateria/internal/billing"
	"ateria/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for lookups of missing rows.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

var _ billing.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) PutUser(ctx context.Context, u core.User) error {
	profiles, err := json.Marshal(u.Profiles)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, archived_balance_cents, profiles, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			archived_balance_cents = excluded.archived_balance_cents,
			profiles = excluded.profiles`,
		u.ID, u.Name, u.ArchivedBalance.Cents, string(profiles), now())
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// Users returns every user without their allergy profiles, cheapest listing
// for pickers and overviews.
func (r *SQLiteRepository) Users(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, archived_balance_cents FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.ArchivedBalance.Cents); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	var (
		u        core.User
		profiles string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, archived_balance_cents, profiles FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.ArchivedBalance.Cents, &profiles)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(profiles), &u.Profiles); err != nil {
		return core.User{}, fmt.Errorf("unmarshal profiles: %w", err)
	}
	return u, nil
}

// AddUserAllergy inserts or replaces one allergy profile on a user.
func (r *SQLiteRepository) AddUserAllergy(ctx context.Context, userID string, profile core.AllergyProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT profiles FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get user %s: %w", userID, err)
	}

	profiles := make(map[string]core.AllergyProfile)
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil {
		return fmt.Errorf("unmarshal profiles: %w", err)
	}
	profiles[profile.ID] = profile

	updated, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET profiles = ? WHERE id = ?`, string(updated), userID); err != nil {
		return fmt.Errorf("update profiles: %w", err)
	}
	return tx.Commit()
}

// UpdateArchivedBalance overwrites the user's carried-over balance.
func (r *SQLiteRepository) UpdateArchivedBalance(ctx context.Context, userID string, balance core.Money) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET archived_balance_cents = ? WHERE id = ?`, balance.Cents, userID)
	if err != nil {
		return fmt.Errorf("update archived balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- price rules ---

func (r *SQLiteRepository) PutPriceRule(ctx context.Context, rule core.PriceRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_rules
			(id, slot, start_date, end_date, year, normal_cents, young_cents,
			 child_cents, override, time_of_day, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slot = excluded.slot,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			year = excluded.year,
			normal_cents = excluded.normal_cents,
			young_cents = excluded.young_cents,
			child_cents = excluded.child_cents,
			override = excluded.override,
			time_of_day = excluded.time_of_day,
			label = excluded.label`,
		rule.ID, string(rule.Slot), rule.Start.String(), rule.End.String(),
		rule.Start.Year(), rule.Normal.Cents, rule.Young.Cents, rule.Child.Cents,
		boolToInt(rule.Override), rule.TimeOfDay, rule.Label,
		rule.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put price rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PriceRulesByYear(ctx context.Context, year int) ([]core.PriceRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slot, start_date, end_date, normal_cents, young_cents,
		       child_cents, override, time_of_day, label, created_at
		FROM price_rules WHERE year = ? ORDER BY created_at, id`, year)
	if err != nil {
		return nil, fmt.Errorf("query price rules: %w", err)
	}
	defer rows.Close()

	var rules []core.PriceRule
	for rows.Next() {
		var (
			rule                 core.PriceRule
			slot, start, end, at string
			override             int
		)
		if err := rows.Scan(&rule.ID, &slot, &start, &end,
			&rule.Normal.Cents, &rule.Young.Cents, &rule.Child.Cents,
			&override, &rule.TimeOfDay, &rule.Label, &at); err != nil {
			return nil, fmt.Errorf("scan price rule: %w", err)
		}
		rule.Slot = core.MealSlot(slot)
		rule.Override = override != 0
		if rule.Start, err = core.ParseDate(start); err != nil {
			return nil, err
		}
		if rule.End, err = core.ParseDate(end); err != nil {
			return nil, err
		}
		if rule.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse rule timestamp: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// --- registrations ---

func (r *SQLiteRepository) PutRegistration(ctx context.Context, reg core.Registration) error {
	lunch, err := marshalFood(reg.Lunch)
	if err != nil {
		return err
	}
	coffee, err := marshalFood(reg.Coffee)
	if err != nil {
		return err
	}
	dinner, err := marshalFood(reg.Dinner)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO registrations
			(user_id, year, month, day, lunch, coffee, dinner,
			 total_lunch, total_coffee, total_dinner, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year, month, day) DO UPDATE SET
			lunch = excluded.lunch,
			coffee = excluded.coffee,
			dinner = excluded.dinner,
			total_lunch = excluded.total_lunch,
			total_coffee = excluded.total_coffee,
			total_dinner = excluded.total_dinner,
			updated_at = excluded.updated_at`,
		reg.UserID, reg.Year, reg.Month, reg.Day, lunch, coffee, dinner,
		reg.Totals.Lunch, reg.Totals.Coffee, reg.Totals.Dinner, now())
	if err != nil {
		return fmt.Errorf("put registration: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RegistrationsByUserMonth(ctx context.Context, userID string, year, month int) ([]core.Registration, error) {
	return r.queryRegistrations(ctx, `
		SELECT user_id, year, month, day, lunch, coffee, dinner,
		       total_lunch, total_coffee, total_dinner
		FROM registrations
		WHERE user_id = ? AND year = ? AND month = ? ORDER BY day`,
		userID, year, month)
}

func (r *SQLiteRepository) RegistrationsByMonth(ctx context.Context, year, month int) ([]core.Registration, error) {
	return r.queryRegistrations(ctx, `
		SELECT user_id, year, month, day, lunch, coffee, dinner,
		       total_lunch, total_coffee, total_dinner
		FROM registrations
		WHERE year = ? AND month = ? ORDER BY user_id, day`,
		year, month)
}

// RegistrationsByDay returns every user's registration for one calendar day,
// feeding the kitchen day view.
func (r *SQLiteRepository) RegistrationsByDay(ctx context.Context, year, month, day int) ([]core.Registration, error) {
	return r.queryRegistrations(ctx, `
		SELECT user_id, year, month, day, lunch, coffee, dinner,
		       total_lunch, total_coffee, total_dinner
		FROM registrations
		WHERE year = ? AND month = ? AND day = ? ORDER BY user_id`,
		year, month, day)
}

func (r *SQLiteRepository) queryRegistrations(ctx context.Context, query string, args ...any) ([]core.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var regs []core.Registration
	for rows.Next() {
		var (
			reg                   core.Registration
			lunch, coffee, dinner sql.NullString
		)
		if err := rows.Scan(&reg.UserID, &reg.Year, &reg.Month, &reg.Day,
			&lunch, &coffee, &dinner,
			&reg.Totals.Lunch, &reg.Totals.Coffee, &reg.Totals.Dinner); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		if reg.Lunch, err = unmarshalFood(lunch); err != nil {
			return nil, err
		}
		if reg.Coffee, err = unmarshalFood(coffee); err != nil {
			return nil, err
		}
		if reg.Dinner, err = unmarshalFood(dinner); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// --- payments ---

func (r *SQLiteRepository) PutPayment(ctx context.Context, entry core.PaymentEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, year, date, amount_cents, type, label, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			year = excluded.year,
			date = excluded.date,
			amount_cents = excluded.amount_cents,
			type = excluded.type,
			label = excluded.label,
			updated_at = excluded.updated_at`,
		entry.ID, entry.UserID, entry.Date.Year(), entry.Date.String(),
		entry.Amount.Cents, string(entry.Type), entry.Label, now())
	if err != nil {
		return fmt.Errorf("put payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PaymentsByUserYear(ctx context.Context, userID string, year int) ([]core.PaymentEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, date, amount_cents, type, label
		FROM payments WHERE user_id = ? AND year = ? ORDER BY date, id`,
		userID, year)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var entries []core.PaymentEntry
	for rows.Next() {
		var (
			entry      core.PaymentEntry
			date, kind string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &date,
			&entry.Amount.Cents, &kind, &entry.Label); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		entry.Type = core.PaymentType(kind)
		if entry.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- helpers ---

func marshalFood(f *core.FoodRecord) (any, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal food record: %w", err)
	}
	return string(data), nil
}

func unmarshalFood(raw sql.NullString) (*core.FoodRecord, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var f core.FoodRecord
	if err := json.Unmarshal([]byte(raw.String), &f); err != nil {
		return nil, fmt.Errorf("unmarshal food record: %w", err)
	}
	return &f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
