// Package automation walks the webmail inbox of the senders of an account,
// visits the call to action links of their unread emails and reports every
// processed email.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jakopako/mailwalk/internal/api"
	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/log"
	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/pace"
	"github.com/jakopako/mailwalk/internal/runstate"
	"github.com/jakopako/mailwalk/internal/types"
)

// Store is the durable state a run reads.
type Store interface {
	runstate.FlagStore
	AccessToken(ctx context.Context) (string, error)
	Settings(ctx context.Context) (json.RawMessage, error)
}

// Requester sends requests to the background service.
type Requester interface {
	Request(ctx context.Context, msg messaging.Message) (messaging.Response, error)
}

// Reporter publishes the progress of a run.
type Reporter interface {
	Log(ctx context.Context, level types.LogLevel, message string)
	Finished(ctx context.Context, total int)
	Stopped(ctx context.Context, total int)
	Failed(ctx context.Context, err error)
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Account string
	Total   int
	Senders []types.SenderStatus
	Outcome types.Outcome
	Err     error
	Start   time.Time
	End     time.Time
}

// Status converts the result for output writers.
func (r *Result) Status() types.RunStatus {
	s := types.RunStatus{
		RunID:       r.RunID,
		Account:     r.Account,
		NrProcessed: r.Total,
		Senders:     r.Senders,
		Outcome:     r.Outcome,
		Start:       r.Start,
		End:         r.End,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

const (
	defaultPaginationTimeout  = 10 * time.Second
	defaultTabResponseTimeout = 90 * time.Second
)

// Runner executes runs against one page. A Runner performs one run at a
// time.
type Runner struct {
	page   dom.Page
	store  Store
	bus    Requester
	rep    Reporter
	opts   Options
	gate   runstate.Gate
	waiter *dom.Waiter
	pacer  *pace.Pacer
}

func NewRunner(page dom.Page, store Store, bus Requester, rep Reporter, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = dom.DefaultInterval
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = dom.DefaultTimeout
	}
	if opts.PaginationTimeout <= 0 {
		opts.PaginationTimeout = defaultPaginationTimeout
	}
	if opts.TabResponseTimeout <= 0 {
		opts.TabResponseTimeout = defaultTabResponseTimeout
	}
	gate := runstate.Gate{Flags: store}
	return &Runner{
		page:  page,
		store: store,
		bus:   bus,
		rep:   rep,
		opts:  opts,
		gate:  gate,
		waiter: &dom.Waiter{
			Page:     page,
			Interval: opts.PollInterval,
			Timeout:  opts.ElementTimeout,
			Gate:     gate,
		},
		pacer: &pace.Pacer{Gate: gate, Slice: opts.PollInterval},
	}
}

// run is the state of a single run.
type run struct {
	*Result
	token    string
	ctaPaths []string
	sender   *types.SenderStatus
}

func (r *Runner) info(ctx context.Context, format string, a ...any) {
	r.rep.Log(ctx, types.LogLevelInfo, fmt.Sprintf(format, a...))
}

func (r *Runner) success(ctx context.Context, format string, a ...any) {
	r.rep.Log(ctx, types.LogLevelSuccess, fmt.Sprintf(format, a...))
}

func (r *Runner) warn(ctx context.Context, format string, a ...any) {
	r.rep.Log(ctx, types.LogLevelWarn, fmt.Sprintf(format, a...))
}

// screenshotter is implemented by pages that can save a picture of
// themselves for debugging.
type screenshotter interface {
	SaveScreenshot(ctx context.Context, name string) (string, error)
}

// Run processes senders, searching emails of the last days days. It
// marks the automation as running for its duration and always clears the
// mark again, whatever the outcome.
func (r *Runner) Run(ctx context.Context, senders []string, days int) *Result {
	res := &Result{RunID: uuid.NewString(), Start: r.opts.Now()}
	logger := log.LoggerFromContext(ctx).With(slog.String("run", res.RunID))
	ctx = log.ContextWithLogger(ctx, logger)

	release, err := runstate.Begin(ctx, r.store)
	if err != nil {
		res.Outcome, res.Err, res.End = types.OutcomeFailed, err, r.opts.Now()
		r.rep.Log(ctx, types.LogLevelError, fmt.Sprintf("The automation sequence FAILED: %v", err))
		r.rep.Failed(ctx, err)
		return res
	}
	defer func() {
		logger.Debug("resetting running state")
		if err := release(); err != nil {
			logger.Error(fmt.Sprintf("error resetting running state: %v", err))
		}
		res.End = r.opts.Now()
	}()

	err = r.sequence(ctx, &run{Result: res}, senders, days)
	// the final log lines are written even if ctx has been cancelled
	ctx = context.WithoutCancel(ctx)
	switch {
	case err == nil:
		res.Outcome = types.OutcomeCompleted
		r.success(ctx, "Full sequence terminated normally! Total processed: %d", res.Total)
		r.rep.Finished(ctx, res.Total)
	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		res.Outcome = types.OutcomeStopped
		r.warn(ctx, "Automation stopped by user. Emails processed before stopping: %d", res.Total)
		r.rep.Stopped(ctx, res.Total)
	default:
		res.Outcome, res.Err = types.OutcomeFailed, err
		if s, ok := r.page.(screenshotter); ok && log.Debug {
			if path, serr := s.SaveScreenshot(ctx, "failure"); serr == nil {
				logger.Debug(fmt.Sprintf("saved screenshot of the failure to %s", path))
			}
		}
		r.rep.Log(ctx, types.LogLevelError, fmt.Sprintf("The automation sequence FAILED: %v", err))
		r.rep.Failed(ctx, err)
	}
	return res
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// accountEmail extracts the address of the signed in account from the
// document title. It is empty if the title carries none.
func accountEmail(title string) string {
	return emailPattern.FindString(title)
}

// sequence loads the configuration, cleans the spam folder and then walks
// the inbox sender by sender.
func (r *Runner) sequence(ctx context.Context, rn *run, senders []string, days int) error {
	logger := log.LoggerFromContext(ctx)
	r.info(ctx, "--- GLOBAL AUTOMATION LOOP STARTED ---")

	snap, err := r.page.Snapshot(ctx)
	if err != nil {
		return err
	}
	rn.Account = accountEmail(snap.Title())
	if rn.Account != "" {
		r.info(ctx, "Connected account: %s", rn.Account)
	} else {
		r.warn(ctx, "No email found in page title")
	}

	if err := r.loadConfig(ctx, rn); err != nil {
		return err
	}
	r.info(ctx, "Settings loaded successfully.")

	if err := r.cleanSpam(ctx, senders); err != nil {
		return err
	}

	for _, sender := range senders {
		if err := r.gate.Check(ctx); err != nil {
			return err
		}
		rn.Senders = append(rn.Senders, types.SenderStatus{Sender: sender})
		rn.sender = &rn.Senders[len(rn.Senders)-1]
		sctx := log.ContextWithLogger(ctx, logger.With(slog.String("sender", sender)))
		if err := r.processSender(sctx, rn, sender, days); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) loadConfig(ctx context.Context, rn *run) error {
	token, err := r.store.AccessToken(ctx)
	if err != nil {
		return err
	}
	raw, err := r.store.Settings(ctx)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrConfigMissing
	}
	settings, err := api.ParseSettings(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigMissing, err)
	}
	paths, err := settings.CTAPaths(r.opts.Provider)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigMissing, err)
	}
	if len(paths) == 0 {
		return ErrConfigMissing
	}
	rn.token, rn.ctaPaths = token, paths
	return nil
}
