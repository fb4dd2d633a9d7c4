package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"leaderbot/internal/app"
	"leaderbot/internal/dispatch"
	"leaderbot/internal/subscription"
)

const usage = `usage: leaderbot [-config path] [-env path] <command> [flags]

commands:
  run        perform one dispatch pass
  serve      run passes on the configured cron schedule
  test-send  post one message to an endpoint, bypassing the store
  import     upsert subscriptions from a JSON or YAML file
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("leaderbot", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := global.String("config", "./leaderbot.yaml", "path to config (json or yaml)")
	envPath := global.String("env", ".env", "optional .env file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	cmd, cmdArgs := rest[0], rest[1:]

	var err error
	switch cmd {
	case "run":
		err = cmdRun(ctx, *cfgPath, *envPath, cmdArgs, stdout, stderr)
	case "serve":
		err = cmdServe(ctx, *cfgPath, *envPath, cmdArgs, stderr)
	case "test-send":
		err = cmdTestSend(ctx, *cfgPath, *envPath, cmdArgs, stdout, stderr)
	case "import":
		err = cmdImport(ctx, *cfgPath, *envPath, cmdArgs, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "leaderbot:", err)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// parseFlags maps flag errors to usage errors; -h stays flag.ErrHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return usageError{err.Error()}
}

func open(ctx context.Context, cfgPath, envPath string, opts app.Options) (*app.App, error) {
	opts.ConfigPath, opts.EnvPath = cfgPath, envPath
	return app.New(ctx, opts)
}

// optionalInt records whether an int flag was set.
type optionalInt struct {
	v   int
	set bool
}

func (o *optionalInt) String() string {
	if !o.set {
		return ""
	}
	return fmt.Sprint(o.v)
}

func (o *optionalInt) Set(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	o.v = v
	o.set = true
	return nil
}

func (o *optionalInt) ptr() *int {
	if !o.set {
		return nil
	}
	v := o.v
	return &v
}

func cmdRun(ctx context.Context, cfgPath, envPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var hour, day optionalInt
	fs.Var(&hour, "hour", "override the hour of day (0-23)")
	fs.Var(&day, "day", "override the day of the season month")
	force := fs.Bool("force", false, "treat the date as in season")
	dryRun := fs.Bool("dry-run", false, "render and log without delivering, deleting or auditing")
	id := fs.Int64("id", 0, "only this subscription id")
	endpoint := fs.String("endpoint", "", "only the subscription with this endpoint")
	noCache := fs.Bool("no-cache", false, "bypass the leaderboard cache")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if hour.set && (hour.v < 0 || hour.v > 23) {
		return usageError{fmt.Sprintf("-hour %d out of range 0..23", hour.v)}
	}
	if day.set && (day.v < 1 || day.v > 31) {
		return usageError{fmt.Sprintf("-day %d out of range 1..31", day.v)}
	}

	a, err := open(ctx, cfgPath, envPath, app.Options{NoCache: *noCache})
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Run(ctx, dispatch.RunOptions{
		Hour:     hour.ptr(),
		Day:      day.ptr(),
		Force:    *force,
		DryRun:   *dryRun,
		ID:       *id,
		Endpoint: *endpoint,
	})
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Fprintln(stdout, sum.Text())
	return nil
}

func cmdServe(ctx context.Context, cfgPath, envPath string, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noCache := fs.Bool("no-cache", false, "bypass the leaderboard cache")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	a, err := open(ctx, cfgPath, envPath, app.Options{NoCache: *noCache})
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

func cmdTestSend(ctx context.Context, cfgPath, envPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("test-send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", "", "destination webhook URL (required)")
	kindFlag := fs.String("kind", "discord", "destination type: discord or slack")
	mention := fs.String("mention", "", "discord role id to mention")
	ping := fs.Bool("ping", false, "slack: ping the channel")
	board := fs.String("leaderboard", "", "send a real update for this leaderboard URL")
	joinCode := fs.String("join-code", "", "join code to include")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *endpoint == "" {
		return usageError{"test-send: -endpoint is required"}
	}
	kind, err := subscription.ParseKind(*kindFlag)
	if err != nil {
		return usageError{err.Error()}
	}
	dest, err := subscription.NewDestination(kind, *mention, *ping)
	if err != nil {
		return usageError{err.Error()}
	}

	a, err := open(ctx, cfgPath, envPath, app.Options{NoStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.SendTest(ctx, dispatch.TestSend{
		Endpoint:       *endpoint,
		Destination:    dest,
		LeaderboardURL: *board,
		JoinCode:       *joinCode,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "test-send:", out)
	if !out.OK() {
		return fmt.Errorf("test-send: %s", out)
	}
	return nil
}

func cmdImport(ctx context.Context, cfgPath, envPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "subscriptions file (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return usageError{"import: -file is required"}
	}
	a, err := open(ctx, cfgPath, envPath, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	res, err := a.Import(ctx, *file)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d subscription(s), skipped %d\n", res.Stored, res.Skipped)
	return nil
}
