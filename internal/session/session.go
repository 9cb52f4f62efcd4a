// Package session implements the account flows that precede a run: login,
// logout, sender selection and stopping a run.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jakopako/mailwalk/internal/api"
	"github.com/jakopako/mailwalk/internal/runstate"
	"github.com/jakopako/mailwalk/internal/utils"
	"golang.org/x/sync/errgroup"
)

// LoginError carries the message shown to the user when a login is
// refused.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string {
	return e.Message
}

var (
	// ErrAccountData is returned when the senders or the settings could not
	// be fetched after a successful authentication.
	ErrAccountData = &LoginError{Message: "Failed to fetch account data."}
	// ErrVPN is returned when the API detected a VPN connection.
	ErrVPN = &LoginError{Message: "Connection failed: Please disable your VPN."}
	// ErrNotLoggedIn is returned by operations that need a stored account.
	ErrNotLoggedIn = errors.New("not logged in, run 'mailwalk login' first")
	// ErrNoSenders is returned when there is no sender to run for.
	ErrNoSenders = errors.New("please select at least one sender")
)

// API is the part of the API client the session uses.
type API interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Senders(ctx context.Context, token string) (*api.SendersResponse, error)
	Settings(ctx context.Context, token string) (*api.Settings, error)
}

// Store is the durable state the session writes.
type Store interface {
	runstate.FlagStore
	AccessToken(ctx context.Context) (string, error)
	Senders(ctx context.Context) ([]string, error)
	SaveAccount(ctx context.Context, token string, senders []string, settings json.RawMessage) error
	Clear(ctx context.Context) error
}

type Session struct {
	api    API
	store  Store
	logger *slog.Logger
}

func New(client API, store Store) *Session {
	return &Session{
		api:    client,
		store:  store,
		logger: slog.With(slog.String("component", "session")),
	}
}

// Login authenticates the user, fetches the senders and the settings of
// the account and stores them. It returns the senders.
func (s *Session) Login(ctx context.Context, username, password string) ([]string, error) {
	login, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if login == nil || !login.Status {
		msg := "Login failed."
		if login != nil && login.Message != "" {
			msg = login.Message
		}
		return nil, &LoginError{Message: msg}
	}
	s.logger.Debug("authenticated, fetching account data")

	var senders *api.SendersResponse
	var settings *api.Settings
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		senders, err = s.api.Senders(gctx, login.AccessToken)
		return err
	})
	g.Go(func() error {
		var err error
		settings, err = s.api.Settings(gctx, login.AccessToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if senders == nil || !senders.Status || settings == nil {
		return nil, ErrAccountData
	}
	if senders.VPN {
		return nil, ErrVPN
	}

	list := senders.Senders
	if list == nil {
		list = []string{}
	}
	if err := s.store.SaveAccount(ctx, login.AccessToken, list, settings.Raw()); err != nil {
		return nil, fmt.Errorf("error saving account data: %w", err)
	}
	s.logger.Info(fmt.Sprintf("logged in, %d senders available", len(list)))
	return list, nil
}

// Logout removes everything that has been stored.
func (s *Session) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Senders returns the senders of the stored account.
func (s *Session) Senders(ctx context.Context) ([]string, error) {
	token, err := s.store.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	return s.store.Senders(ctx)
}

// Stop asks a running automation to stop.
func (s *Session) Stop(ctx context.Context) error {
	return runstate.Stop(ctx, s.store)
}

// SelectSenders returns the requested senders, or all of them if none
// are requested. Requested senders are matched case insensitively and
// unknown ones are reported with the closest known sender.
func SelectSenders(all, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(all) == 0 {
			return nil, ErrNoSenders
		}
		return all, nil
	}
	selected := make([]string, 0, len(requested))
	seen := map[string]bool{}
	for _, r := range requested {
		match := ""
		for _, a := range all {
			if strings.EqualFold(strings.TrimSpace(r), a) {
				match = a
				break
			}
		}
		if match == "" {
			if suggestion, ok := utils.ClosestMatch(r, all); ok {
				return nil, fmt.Errorf("unknown sender %q, did you mean %q?", r, suggestion)
			}
			return nil, fmt.Errorf("unknown sender %q", r)
		}
		if !seen[match] {
			seen[match] = true
			selected = append(selected, match)
		}
	}
	return selected, nil
}
