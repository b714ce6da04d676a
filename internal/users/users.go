// Package users keeps the account registry in a single users document.
//
// Password hashing happens outside this package; callers hand in the
// finished hash and the hash never leaves the package except through
// Credentials.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"lauschr/internal/apperr"
	"lauschr/internal/config"
	"lauschr/internal/docstore"
	"lauschr/internal/logging"
)

const (
	component     = "users"
	documentName  = "users"
	idPrefix      = "usr_"
	idHexLength   = 24
	defaultSearch = 10
)

// Account status values.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// Installation-wide roles. Feed roles live in the permission package.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Settings holds per-user preferences.
type Settings struct {
	Language      string `json:"language"`
	Notifications bool   `json:"notifications"`
}

// User is the public read model of an account.
type User struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Status        string   `json:"status"`
	Role          string   `json:"role"`
	EmailVerified bool     `json:"email_verified"`
	Settings      Settings `json:"settings"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type record struct {
	User
	PasswordHash string `json:"password_hash"`
}

type registry struct {
	Users map[string]record `json:"users"`
}

func emptyRegistry() registry {
	return registry{Users: map[string]record{}}
}

// CreateUserInput carries the fields of a new account.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Status       string
	Role         string
	Language     string
}

// UserPatch lists the updatable account fields. Nil fields are left unchanged.
type UserPatch struct {
	Name          *string
	Email         *string
	Settings      *Settings
	EmailVerified *bool
	Status        *string
	Role          *string
}

// Service manages the account registry.
type Service struct {
	store    *docstore.Store
	language string
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service storing accounts in store.
func New(cfg *config.Config, store *docstore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		language: cfg.App.Language,
		logger:   logging.NewComponentLogger(logger, component),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Service) load() (registry, error) {
	reg, err := docstore.Read(s.store, documentName, emptyRegistry())
	if err != nil {
		return registry{}, err
	}
	if reg.Users == nil {
		reg.Users = map[string]record{}
	}
	return reg, nil
}

func (s *Service) update(fn func(registry) (registry, error)) (registry, error) {
	return docstore.Update(s.store, documentName, emptyRegistry(), func(reg registry) (registry, error) {
		if reg.Users == nil {
			reg.Users = map[string]record{}
		}
		return fn(reg)
	})
}

// Create registers a new account. Emails are unique, compared lowercased.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	const op = "create user"
	email, err := normalizeEmail(input.Email, op)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return User{}, apperr.Validation(component, op, "name is required")
	}
	if strings.TrimSpace(input.PasswordHash) == "" {
		return User{}, apperr.Validation(component, op, "password hash is required")
	}
	status, err := normalizeStatus(input.Status, StatusPending, op)
	if err != nil {
		return User{}, err
	}
	role, err := normalizeRole(input.Role, op)
	if err != nil {
		return User{}, err
	}
	language := strings.TrimSpace(input.Language)
	if language == "" {
		language = s.language
	}

	now := s.timestamp()
	rec := record{
		User: User{
			ID:        idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:idHexLength],
			Email:     email,
			Name:      name,
			Status:    status,
			Role:      role,
			Settings:  Settings{Language: language, Notifications: true},
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: input.PasswordHash,
	}
	_, err = s.update(func(reg registry) (registry, error) {
		if owner, taken := findEmail(reg, email); taken {
			return reg, apperr.Validation(component, op, fmt.Sprintf("email %s is already registered (%s)", email, owner))
		}
		reg.Users[rec.ID] = rec
		return reg, nil
	})
	if err != nil {
		return User{}, err
	}
	logging.WithContext(ctx, s.logger).Info("user created",
		logging.UserID(rec.ID),
		logging.String("status", rec.Status),
	)
	return rec.User, nil
}

// Get returns the account with the given ID.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	reg, err := s.load()
	if err != nil {
		return User{}, err
	}
	rec, ok := reg.Users[id]
	if !ok {
		return User{}, apperr.NotFound(component, "get user", id)
	}
	return rec.User, nil
}

// FindByEmail returns the account registered under email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	rec, err := s.findRecord(email)
	if err != nil {
		return User{}, err
	}
	return rec.User, nil
}

// Credentials returns the account and stored password hash for email, for an
// authenticator to verify.
func (s *Service) Credentials(ctx context.Context, email string) (User, string, error) {
	rec, err := s.findRecord(email)
	if err != nil {
		return User{}, "", err
	}
	return rec.User, rec.PasswordHash, nil
}

func (s *Service) findRecord(email string) (record, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	reg, err := s.load()
	if err != nil {
		return record{}, err
	}
	id, ok := findEmail(reg, email)
	if !ok {
		return record{}, apperr.NotFound(component, "find user", email)
	}
	return reg.Users[id], nil
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	reg, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedUsers(reg), nil
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int, error) {
	reg, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(reg.Users), nil
}

// Search returns up to limit accounts whose name or email contains query,
// case-insensitively. limit <= 0 uses a default of 10.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = defaultSearch
	}
	query = strings.ToLower(strings.TrimSpace(query))
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, min(limit, len(all)))
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Name), query) || strings.Contains(u.Email, query) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Update applies the non-nil fields of patch.
func (s *Service) Update(ctx context.Context, id string, patch UserPatch) (User, error) {
	const op = "update user"
	var email, status, role *string
	if patch.Email != nil {
		value, err := normalizeEmail(*patch.Email, op)
		if err != nil {
			return User{}, err
		}
		email = &value
	}
	if patch.Status != nil {
		value, err := normalizeStatus(*patch.Status, "", op)
		if err != nil {
			return User{}, err
		}
		status = &value
	}
	if patch.Role != nil {
		value, err := normalizeRole(*patch.Role, op)
		if err != nil {
			return User{}, err
		}
		role = &value
	}
	var name *string
	if patch.Name != nil {
		value := strings.TrimSpace(*patch.Name)
		if value == "" {
			return User{}, apperr.Validation(component, op, "name is required")
		}
		name = &value
	}

	return s.mutate(ctx, id, op, func(rec *record, reg registry) error {
		if email != nil && *email != rec.Email {
			if _, taken := findEmail(reg, *email); taken {
				return apperr.Validation(component, op, fmt.Sprintf("email %s is already registered", *email))
			}
			rec.Email = *email
		}
		if name != nil {
			rec.Name = *name
		}
		if patch.Settings != nil {
			rec.Settings = *patch.Settings
		}
		if patch.EmailVerified != nil {
			rec.EmailVerified = *patch.EmailVerified
		}
		if status != nil {
			rec.Status = *status
		}
		if role != nil {
			rec.Role = *role
		}
		return nil
	})
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Service) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "update password"
	if strings.TrimSpace(hash) == "" {
		return apperr.Validation(component, op, "password hash is required")
	}
	_, err := s.mutate(ctx, id, op, func(rec *record, _ registry) error {
		rec.PasswordHash = hash
		return nil
	})
	return err
}

// Approve activates a pending account.
func (s *Service) Approve(ctx context.Context, id string) (User, error) {
	return s.decide(ctx, id, StatusActive)
}

// Reject marks a pending account as rejected.
func (s *Service) Reject(ctx context.Context, id string) (User, error) {
	return s.decide(ctx, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, id, status string) (User, error) {
	op := "set status " + status
	return s.mutate(ctx, id, op, func(rec *record, _ registry) error {
		if rec.Status != StatusPending {
			return apperr.Validation(component, op, fmt.Sprintf("user %s is %s, not pending", rec.ID, rec.Status))
		}
		rec.Status = status
		return nil
	})
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.update(func(reg registry) (registry, error) {
		if _, ok := reg.Users[id]; !ok {
			return reg, apperr.NotFound(component, "delete user", id)
		}
		delete(reg.Users, id)
		return reg, nil
	})
	if err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("user deleted", logging.UserID(id))
	return nil
}

func (s *Service) mutate(ctx context.Context, id, op string, fn func(*record, registry) error) (User, error) {
	var result User
	_, err := s.update(func(reg registry) (registry, error) {
		rec, ok := reg.Users[id]
		if !ok {
			return reg, apperr.NotFound(component, op, id)
		}
		if err := fn(&rec, reg); err != nil {
			return reg, err
		}
		rec.UpdatedAt = s.timestamp()
		reg.Users[id] = rec
		result = rec.User
		return reg, nil
	})
	if err != nil {
		return User{}, err
	}
	logging.WithContext(ctx, s.logger).Info("user updated",
		logging.UserID(id),
		logging.String("operation", op),
	)
	return result, nil
}

func findEmail(reg registry, email string) (string, bool) {
	for id, rec := range reg.Users {
		if rec.Email == email {
			return id, true
		}
	}
	return "", false
}

func sortedUsers(reg registry) []User {
	out := make([]User, 0, len(reg.Users))
	for _, rec := range reg.Users {
		out = append(out, rec.User)
	}
	slices.SortFunc(out, func(a, b User) int {
		if c := strings.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func normalizeEmail(value, op string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", apperr.Validation(component, op, "email is required")
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", apperr.Validation(component, op, fmt.Sprintf("invalid email %q", value))
	}
	return value, nil
}

func normalizeStatus(value, fallback, op string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" && fallback != "" {
		return fallback, nil
	}
	switch value {
	case StatusPending, StatusActive, StatusRejected:
		return value, nil
	}
	return "", apperr.Validation(component, op, fmt.Sprintf("invalid status %q", value))
}

func normalizeRole(value, op string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return RoleUser, nil
	case RoleUser, RoleAdmin:
		return value, nil
	}
	return "", apperr.Validation(component, op, fmt.Sprintf("invalid role %q", value))
}
