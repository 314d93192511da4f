package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/repository"
)

const maxSurnameLength = 64

// UserStore is the persistence contract for registered guards.
type UserStore interface {
	GetUser(ctx context.Context, identifier int64) (*model.User, error)
	CreateUserCapped(ctx context.Context, user *model.User, maxUsers int) error
	UpdateUserSurname(ctx context.Context, identifier int64, surname string) error
}

// UserService handles guard registration.
type UserService struct {
	store    UserStore
	maxUsers int
	now      func() time.Time
}

// NewUserService creates a new UserService admitting at most maxUsers guards.
func NewUserService(store UserStore, maxUsers int) *UserService {
	return &UserService{
		store:    store,
		maxUsers: maxUsers,
		now:      time.Now,
	}
}

// Get returns the registered user or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, identifier int64) (*model.User, error) {
	user, err := s.store.GetUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Register creates a user or, if the identifier is already registered,
// changes its surname. created reports whether a new row was inserted.
// A new identifier is rejected with ErrRegistrationClosed once the cap is
// reached; no row is written in that case.
func (s *UserService) Register(ctx context.Context, identifier int64, surname string) (*model.User, bool, error) {
	surname = strings.Join(strings.Fields(surname), " ")
	if surname == "" || utf8.RuneCountInString(surname) > maxSurnameLength {
		return nil, false, ErrInvalidSurname
	}

	existing, err := s.Get(ctx, identifier)
	switch {
	case err == nil:
		if existing.Surname == surname {
			return existing, false, nil
		}
		if err := s.store.UpdateUserSurname(ctx, identifier, surname); err != nil {
			return nil, false, fmt.Errorf("failed to rename user: %w", err)
		}
		existing.Surname = surname
		return existing, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	user := &model.User{
		Identifier: identifier,
		Surname:    surname,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.store.CreateUserCapped(ctx, user, s.maxUsers); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserCapReached):
			return nil, false, ErrRegistrationClosed
		case errors.Is(err, repository.ErrUserExists):
			// Lost a race with a duplicate delivery of the same registration.
			user, err := s.Get(ctx, identifier)
			return user, false, err
		}
		return nil, false, err
	}

	return user, true, nil
}
