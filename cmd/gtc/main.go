package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/gtc/internal/config"
	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/lock"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/internal/version"
)

// Exit codes
const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2 // the command ran but some files failed
	exitLocked  = 3
)

// partialError reports per-file failures after they have been printed
type partialError struct {
	failed int
}

func (e *partialError) Error() string {
	return fmt.Sprintf("%d file operation(s) failed", e.failed)
}

func exitCode(err error) int {
	var pe *partialError
	switch {
	case err == nil:
		return exitOK
	case stderrors.As(err, &pe):
		return exitPartial
	case stderrors.Is(err, lock.ErrLocked):
		return exitLocked
	default:
		return exitError
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gtc: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "gtc",
		Usage:                  "Keep an image/transcript corpus free of duplicates and densely numbered",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory holding .gtc.kdl or .gtc.toml (default: the corpus root, else the working directory)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude root-relative paths matching glob patterns (e.g., --exclude 'scratch/**')",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Write debug information to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "dups",
				Usage:  "List groups of files with identical content",
				Flags:  corpusFlags(),
				Action: dupsCommand,
			},
			{
				Name:  "dedupe",
				Usage: "Delete every duplicate, keeping the first file of each group",
				Flags: append(corpusFlags(),
					&cli.BoolFlag{
						Name:  "companions",
						Usage: "Also delete the companions of each duplicate",
					},
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Usage:   "Show what would be deleted",
					},
				),
				Action: dedupeCommand,
			},
			{
				Name:      "companions",
				Usage:     "List the files that share the stem of a file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    companionsCommand,
			},
			{
				Name:  "renumber",
				Usage: "Rename records to a dense zero-padded sequence",
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:    "width",
						Aliases: []string{"w"},
						Usage:   "Digits in the new stems (default: config, 4)",
					},
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Usage:   "Show the rename plan without renaming",
					},
				),
				Action: renumberCommand,
			},
			{
				Name:      "status",
				Usage:     "Show the transcription status of the records in a directory",
				ArgsUsage: "[dir]",
				Flags:     corpusFlags(),
				Action:    statusCommand,
			},
			{
				Name:      "next",
				Usage:     "Print the next record to review",
				ArgsUsage: "[dir]",
				Flags: append(corpusFlags(),
					&cli.StringFlag{
						Name:  "after",
						Usage: "Start after the record with this stem",
					},
					&cli.BoolFlag{
						Name:    "unfinished",
						Aliases: []string{"u"},
						Usage:   "Only stop at records whose transcript is not finished",
					},
				),
				Action: nextCommand,
			},
			{
				Name:      "show",
				Usage:     "Print the transcript of the record containing a file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    showCommand,
			},
			{
				Name:      "save",
				Usage:     "Store a transcript read from stdin for the record containing a file",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "finished",
						Aliases: []string{"f"},
						Usage:   "Mark the transcript as finished (.gt.txt)",
					},
				},
				Action: saveCommand,
			},
			{
				Name:      "reset-finished",
				Usage:     "Turn every finished transcript in a directory back into an unfinished one",
				ArgsUsage: "[dir]",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    resetFinishedCommand,
			},
			{
				Name:      "delete-record",
				Usage:     "Delete a file together with all of its companions",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    deleteRecordCommand,
			},
			{
				Name:  "watch",
				Usage: "Report duplicates continuously as the corpus changes",
				Flags: append(corpusFlags(),
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a rescan (default: config, 300ms)",
					},
				),
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the corpus tools over MCP on stdio",
				Action: mcpCommand,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		jsonFlag(),
		&cli.StringFlag{
			Name:    "selector",
			Aliases: []string{"s"},
			Usage:   "Primary file selector: a glob ('*.png') or a regex ('re:^\\d+\\.tif$') (default: config)",
		},
	}
}

// env is what every command needs: the merged configuration and the
// filesystem the engine runs on
type env struct {
	cfg *config.Config
	sel selector.Selector
	fs  afero.Fs
	log *debug.Logger
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context, fsys afero.Fs) (*config.Config, error) {
	rootFlag := c.String("root")
	configDir := c.String("config")
	if configDir == "" {
		configDir = rootFlag
	}
	if configDir == "" {
		configDir = "."
	}

	cfg, err := config.Load(fsys, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configDir, err)
	}

	if rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Corpus.Root = absRoot
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Corpus.Exclude = append(cfg.Corpus.Exclude, excludeFlags...)
	}
	if c.IsSet("selector") {
		cfg.Corpus.Selector = c.String("selector")
	}
	if c.IsSet("width") {
		cfg.Renumber.Width = c.Int("width")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(c *cli.Context) (*env, error) {
	fsys := afero.NewOsFs()
	cfg, err := loadConfigWithOverrides(c, fsys)
	if err != nil {
		return nil, err
	}
	sel, err := cfg.Selector()
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg: cfg,
		sel: sel,
		fs:  fsys,
		log: debug.New(c.App.ErrWriter, c.Bool("verbose") || debug.EnvEnabled()),
	}
	e.log.Log("CLI", "root=%s selector=%s exclude=%v", cfg.Corpus.Root, sel, cfg.Corpus.Exclude)
	return e, nil
}

// acquire takes the corpus lock for a mutating command when locking is on.
// The returned release func is never nil.
func (e *env) acquire() (func(), error) {
	if !e.cfg.Lock.Enabled {
		return func() {}, nil
	}
	l, err := lock.TryAcquire(e.cfg.Corpus.Root)
	if err != nil {
		return nil, err
	}
	e.log.Log("CLI", "holding %s", l.Path())
	return func() {
		if err := l.Release(); err != nil {
			e.log.Log("CLI", "%v", err)
		}
	}, nil
}

// resolve interprets a command argument relative to the corpus root
func (e *env) resolve(arg string) string {
	if arg == "" {
		return e.cfg.Corpus.Root
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg)
	}
	// paths typed by the user are relative to the working directory when
	// they exist there
	if abs, err := filepath.Abs(arg); err == nil {
		if _, err := e.fs.Stat(abs); err == nil {
			return abs
		}
	}
	return filepath.Join(e.cfg.Corpus.Root, arg)
}

// reportFailures prints per-file errors and turns them into a partialError
func reportFailures(c *cli.Context, err error) error {
	if err == nil {
		return nil
	}
	failures := errors.FileErrors(err)
	if len(failures) == 0 {
		return err
	}
	for _, fe := range failures {
		fmt.Fprintf(c.App.ErrWriter, "error: %v\n", fe)
	}
	return &partialError{failed: len(failures)}
}
