package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/config"
	"github.com/example/swimlens/internal/logging"
	"github.com/example/swimlens/internal/notify"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs       *flag.FlagSet
	program  string
	config   *config.Config
	notifier *notify.Notifier
	log      zerolog.Logger
	stdout   io.Writer
	stderr   io.Writer

	configPath    string
	logLevel      string
	noColor       bool
	exportAlerts  bool
	failureAlerts bool
	copyAlerts    bool
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	r := &root{
		fs:      flag.NewFlagSet("swimlens", flag.ExitOnError),
		program: "swimlens",
		config:  config.New(),
		log:     zerolog.Nop(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	r.fs.StringVar(&r.configPath, "config", configPathOverride, "path to the RC configuration file")
	r.fs.StringVar(&r.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	r.fs.BoolVar(&r.noColor, "no-color", false, "disable coloured log output")
	r.fs.BoolVar(&r.exportAlerts, "notify-export", false, "show a desktop notification when an export finishes")
	r.fs.BoolVar(&r.failureAlerts, "notify-export-failed", false, "show a desktop notification when an export fails")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", false, "show a desktop notification after copying a frame")
	r.fs.Usage = usageFunc(r)
	return r
}

// setup loads the configuration and builds the logger and notifier once the
// root flags are known. Flags override the RC file and environment.
func (r *root) setup() {
	cfg, err := config.NewLoader(version, r.configPath).Load()
	if err != nil {
		fmt.Fprintf(r.stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}
	r.config = cfg
	cfg.RegisterPalette()

	level := r.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	r.log = logging.Setup(r.stderr, level, r.noColor)

	prefs := notify.DefaultPreferences()
	r.notifier = notify.New(prefs, r.log.With().Str("component", "notify").Logger())
	set := flagsSet(r.fs)
	r.notifier.Enable(notify.EventExport, pick(set["notify-export"], r.exportAlerts, cfg.Notify.Export))
	r.notifier.Enable(notify.EventExportFailed, pick(set["notify-export-failed"], r.failureAlerts, cfg.Notify.ExportFailed))
	r.notifier.Enable(notify.EventCopy, pick(set["notify-copy"], r.copyAlerts, cfg.Notify.Copy))
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	r.setup()

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "view":
		cmd, err = parseViewCmd(subArgs, r)
	case "export":
		cmd, err = parseExportCmd(subArgs, r)
	case "probe":
		cmd, err = parseProbeCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "colors":
		cmd, err = parseColorsCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{root: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

// subcommand returns a copy of r whose program name includes name.
func (r *root) subcommand(name string) *root {
	sub := *r
	sub.program = strings.TrimSpace(r.program + " " + name)
	sub.log = r.log.With().Str("cmd", name).Logger()
	return &sub
}

func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// pick returns the flag value when the flag was given and the fallback
// otherwise.
func pick[T any](given bool, flagValue, fallback T) T {
	if given {
		return flagValue
	}
	return fallback
}
