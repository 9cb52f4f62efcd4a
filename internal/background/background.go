// Package background performs the side effects the automation cannot
// perform on the mail page itself: visiting links in separate tabs and
// reporting processed emails to the API.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jakopako/mailwalk/internal/messaging"
)

// TabVisitor opens url in a new tab, waits for it to load, keeps it open
// for a moment and closes it again.
type TabVisitor interface {
	VisitTab(ctx context.Context, url string) error
}

// StatLogger reports a processed email.
type StatLogger interface {
	LogStat(ctx context.Context, token, sender, email string) (bool, error)
}

// Service answers openAndWait and logger requests.
type Service struct {
	tabs   TabVisitor
	stats  StatLogger
	logger *slog.Logger
}

func New(tabs TabVisitor, stats StatLogger) *Service {
	return &Service{
		tabs:   tabs,
		stats:  stats,
		logger: slog.With(slog.String("component", "background")),
	}
}

// Register installs the request handlers on bus.
func (s *Service) Register(bus *messaging.Bus) {
	bus.Handle(messaging.OpenAndWait, s.OpenAndWait)
	bus.Handle(messaging.Logger, s.Log)
}

func (s *Service) OpenAndWait(ctx context.Context, msg messaging.Message) messaging.Response {
	var p messaging.OpenPayload
	if err := msg.Decode(&p); err != nil {
		return messaging.Failure(err.Error())
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return messaging.Failure(fmt.Sprintf("invalid url %q: %v", p.URL, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return messaging.Failure(fmt.Sprintf("refusing to open url with scheme %q", u.Scheme))
	}
	s.logger.Debug(fmt.Sprintf("opening %s in a new tab", p.URL))
	if err := s.tabs.VisitTab(ctx, p.URL); err != nil {
		s.logger.Error(fmt.Sprintf("error visiting %s: %v", p.URL, err))
		return messaging.Failure(err.Error())
	}
	return messaging.Success()
}

func (s *Service) Log(ctx context.Context, msg messaging.Message) messaging.Response {
	var p messaging.LoggerPayload
	if err := msg.Decode(&p); err != nil {
		return messaging.Failure(err.Error())
	}
	if p.AccessToken == "" {
		s.logger.Error("cannot log stat: no access token found")
		return messaging.Failure("no access token")
	}
	s.logger.Debug(fmt.Sprintf("logging stat for sender: %s", p.Sender))
	ok, err := s.stats.LogStat(ctx, p.AccessToken, p.Sender, p.Email)
	if err != nil {
		return messaging.Failure(err.Error())
	}
	if !ok {
		s.logger.Error("failed to log stat to API")
		return messaging.Failure("stat rejected")
	}
	return messaging.Success()
}
