/*
mailwalk drives a webmail tab through the Chrome DevTools protocol, visits
the call to action links of the unread emails of selected senders and
reports every processed email.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jakopako/mailwalk/internal/api"
	"github.com/jakopako/mailwalk/internal/automation"
	"github.com/jakopako/mailwalk/internal/background"
	"github.com/jakopako/mailwalk/internal/browser"
	"github.com/jakopako/mailwalk/internal/config"
	"github.com/jakopako/mailwalk/internal/log"
	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/output"
	"github.com/jakopako/mailwalk/internal/report"
	"github.com/jakopako/mailwalk/internal/runstate"
	"github.com/jakopako/mailwalk/internal/session"
	"github.com/jakopako/mailwalk/internal/store"
	"github.com/jakopako/mailwalk/internal/tui"
	"github.com/jakopako/mailwalk/internal/types"
	"github.com/miekg/king"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const name = "mailwalk"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are the flags shared by all commands.
type Globals struct {
	Debug  bool   `long:"debug" help:"Set log level to 'debug' and store additional helpful debugging data."`
	Config string `short:"c" default:"./mailwalk.yaml" help:"The location of the configuration file." completion:"<file>"`

	config *config.Config `kong:"-"`
}

func (g *Globals) loadConfig() (*config.Config, error) {
	if g.config != nil {
		return g.config, nil
	}
	c, err := config.NewConfig(g.Config)
	if err != nil {
		return nil, err
	}
	g.config = c
	return c, nil
}

func (g *Globals) openStore(ctx context.Context) (*store.Store, error) {
	c, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, c.Store.Path)
}

type cli struct {
	Globals

	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`

	Completion CompletionCommand `cmd:"" help:"Generate autocompletion file."`

	Init    InitCmd    `cmd:"" help:"Write a configuration file with the default values."`
	Login   LoginCmd   `cmd:"" help:"Log in and fetch the senders and settings of the account."`
	Logout  LogoutCmd  `cmd:"" help:"Remove the stored account data."`
	Senders SendersCmd `cmd:"" help:"List the senders of the account."`
	Run     RunCmd     `cmd:"" help:"Run the automation for the given senders."`
	Stop    StopCmd    `cmd:"" help:"Stop a running automation."`
	Status  StatusCmd  `cmd:"" help:"Show whether an automation is running."`
	Logs    LogsCmd    `cmd:"" help:"Print the execution log of the last run."`
	Watch   WatchCmd   `cmd:"" help:"Follow the execution log in an interactive console."`
}

type ShellType string

const (
	BASH ShellType = "bash"
	ZSH  ShellType = "zsh"
	FISH ShellType = "fish"
)

var shellTypes = []string{string(BASH), string(ZSH), string(FISH)}

type CompletionCommand struct {
	Shell ShellType `short:"s" help:"The shell that you want to create the autocompletion file for." required:"" enum:"bash,zsh,fish"`
}

func (acc *CompletionCommand) Run() error {
	cli := &cli{}
	parser := kong.Must(cli)

	switch acc.Shell {
	case BASH:
		b := &king.Bash{}
		b.Completion(parser.Model.Node, name)
		return b.Write()
	case ZSH:
		z := &king.Zsh{}
		z.Completion(parser.Model.Node, name)
		return z.Write()
	case FISH:
		f := &king.Fish{}
		f.Completion(parser.Model.Node, name)
		return f.Write()
	default:
		// should not happen due to enum constraint
		return fmt.Errorf("shell type not supported: %s. Must be one of [%s].", acc.Shell, strings.Join(shellTypes, ", "))
	}
}

type InitCmd struct {
	Force bool `short:"f" help:"Overwrite an existing configuration file."`
}

func (i *InitCmd) Run(g *Globals) error {
	if _, err := os.Stat(g.Config); err == nil && !i.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", g.Config)
	}
	c, err := config.Default()
	if err != nil {
		return err
	}
	if err := c.Write(g.Config); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("successfully wrote config to file %s", g.Config))
	return nil
}

type LoginCmd struct {
	Username string `short:"u" help:"The account username. Defaults to api.username of the configuration."`
	Password string `short:"p" help:"The account password. Defaults to api.password of the configuration."`
}

func (l *LoginCmd) Run(g *Globals) error {
	ctx := context.Background()
	c, err := g.loadConfig()
	if err != nil {
		return err
	}
	username, password := l.Username, l.Password
	if username == "" {
		username = c.API.Username
	}
	if password == "" {
		password = c.API.Password
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	st, err := store.Open(ctx, c.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	senders, err := session.New(api.NewClient(c.API), st).Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in. %d senders available.\n", len(senders))
	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := session.New(nil, st).Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

type SendersCmd struct {
	Completion bool `short:"C" help:"If set to true, the output will be formatted for autocompletion scripts and errors will not be printed."`
}

func (s *SendersCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		if s.Completion {
			// in completion mode, we just return an empty output on error
			return nil
		}
		return err
	}
	defer st.Close()

	senders, err := session.New(nil, st).Senders(ctx)
	if err != nil {
		if s.Completion {
			return nil
		}
		return err
	}
	for _, sender := range senders {
		fmt.Println(sender)
	}
	return nil
}

type RunCmd struct {
	Sender []string          `short:"s" help:"A sender to process. Can be repeated. All senders of the account are processed if none is given." completion:"mailwalk senders -C 2>/dev/null"`
	Days   int               `short:"d" help:"Process the emails of the last n days. Defaults to automation.lookback_days of the configuration."`
	Output output.WriterType `short:"o" help:"Where to write the run summary, overriding output.type of the configuration."`
}

func (r *RunCmd) Run(g *Globals) error {
	c, err := g.loadConfig()
	if err != nil {
		return err
	}
	if r.Output != "" {
		c.Output.Type = r.Output
	}
	days := r.Days
	if days == 0 {
		days = c.Automation.LookbackDays
	}
	if days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", days)
	}
	writer, err := output.NewWriter(&c.Output)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, c.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	running, _, err := st.IsAutomationRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		return errors.New("an automation is already running, stop it with 'mailwalk stop' first")
	}
	all, err := session.New(nil, st).Senders(ctx)
	if err != nil {
		return err
	}
	senders, err := session.SelectSenders(all, r.Sender)
	if err != nil {
		return err
	}
	if err := st.ClearLogs(ctx); err != nil {
		return err
	}

	go handleSignals(ctx, st, cancel)

	b := browser.New(c.Browser)
	defer b.Close()
	if err := b.Start(ctx); err != nil {
		return err
	}
	page, err := b.OpenMail(ctx)
	if err != nil {
		return err
	}

	bus := messaging.NewBus()
	defer bus.Close()
	background.New(b, api.NewClient(c.API)).Register(bus)
	runner := automation.NewRunner(page, st, bus, report.New(st, bus), automation.NewOptions(c))
	listener := automation.NewListener(bus, runner)
	console := output.NewConsole(os.Stdout, st)
	logs := bus.Subscribe(messaging.Log)
	finished := bus.Subscribe(messaging.AutomationFinished)

	results := make(chan *automation.Result, 1)
	eg, egCtx := errgroup.WithContext(ctx)
	listenCtx, stopListening := context.WithCancel(egCtx)
	defer stopListening()
	eg.Go(func() error {
		err := listener.Listen(listenCtx, func(res *automation.Result) {
			results <- res
			stopListening()
		})
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		_, err := console.Follow(egCtx, logs, finished)
		return err
	})

	start, err := messaging.NewMessage(messaging.StartAutomation, messaging.StartPayload{Senders: senders, Days: days})
	if err != nil {
		return err
	}
	slog.Debug(fmt.Sprintf("starting automation for %d senders", len(senders)))
	if err := bus.Notify(start); err != nil {
		return err
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var res *automation.Result
	select {
	case res = <-results:
	default:
		return errors.New("the automation ended without a result")
	}
	if err := writer.WriteStatus(res.Status()); err != nil {
		slog.Error(fmt.Sprintf("error writing run status: %v", err))
	}
	if res.Outcome == types.OutcomeFailed {
		return res.Err
	}
	return nil
}

// handleSignals turns the first interrupt into a stop request, which lets
// the run end through its regular cleanup. A second interrupt cancels ctx.
func handleSignals(ctx context.Context, flags runstate.FlagStore, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	stopped := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if stopped {
				slog.Warn("interrupted again, aborting")
				cancel()
				return
			}
			stopped = true
			slog.Warn("stopping the automation, interrupt again to abort")
			if err := runstate.Stop(context.WithoutCancel(ctx), flags); err != nil {
				slog.Error(fmt.Sprintf("error stopping the automation: %v", err))
				cancel()
				return
			}
		}
	}
}

type StopCmd struct{}

func (s *StopCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := session.New(nil, st).Stop(ctx); err != nil {
		return err
	}
	fmt.Println("Stop requested.")
	return nil
}

type StatusCmd struct{}

func (s *StatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	token, err := st.AccessToken(ctx)
	if err != nil {
		return err
	}
	running, _, err := st.IsAutomationRunning(ctx)
	if err != nil {
		return err
	}
	logs, err := st.Logs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("logged in:   %t\n", token != "")
	fmt.Printf("running:     %t\n", running)
	fmt.Printf("log entries: %d\n", len(logs))
	return nil
}

type LogsCmd struct{}

func (l *LogsCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	logs, err := st.Logs(ctx)
	if err != nil {
		return err
	}
	console := output.NewConsole(os.Stdout, nil)
	for _, entry := range logs {
		console.Print(entry)
	}
	return nil
}

type WatchCmd struct {
	Interval time.Duration `short:"i" default:"500ms" help:"How often the log is read."`
}

func (w *WatchCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return tui.NewWatcher(st, w.Interval).Run(ctx)
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	log.Debug = cli.Debug
	// the log console prints the progress of a run
	log.Quiet = strings.HasPrefix(ctx.Command(), "run")
	// the watch console owns the terminal
	log.NoStdout = strings.HasPrefix(ctx.Command(), "watch")
	var lc config.LogConfig
	if c, err := cli.loadConfig(); err == nil {
		lc = c.Log
	}
	closer := log.InitializeDefaultLogger(lc)
	defer closer.Close()

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
