package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/dedupe"
	"github.com/standardbeagle/gtc/internal/mcp"
	"github.com/standardbeagle/gtc/internal/watch"
)

// watchCommand rescans the corpus after every burst of changes and prints
// one summary per scan until interrupted
func watchCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	debounce := e.cfg.WatchDebounce()
	if c.IsSet("debounce") {
		debounce = c.Duration("debounce")
	}

	w, err := watch.New(watch.Options{
		Root:     e.cfg.Corpus.Root,
		Selector: e.sel,
		Exclude:  e.cfg.Corpus.Exclude,
		Debounce: debounce,
		Detector: e.detector(),
		Logger:   e.log,
	})
	if err != nil {
		return err
	}

	if !c.Bool("json") {
		fmt.Fprintf(c.App.ErrWriter, "Watching %s (Ctrl-C to stop)\n", e.cfg.Corpus.Root)
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	printer := &scanPrinter{w: c.App.Writer, e: e, json: c.Bool("json"), stop: cancel}
	err = w.Run(ctx, printer.print)

	stats := w.Stats()
	e.log.Watch("stopped after %d scans, %d events, %d errors", stats.Scans, stats.Events, stats.Errors)
	if printer.err != nil {
		return printer.err
	}
	return err
}

// scanPrinter writes one entry per watch scan. A failed write, such as a
// closed pipe, stops the watch.
type scanPrinter struct {
	w    io.Writer
	e    *env
	json bool
	stop context.CancelFunc
	err  error
}

func (p *scanPrinter) print(res *dedupe.Result) {
	if p.err != nil {
		return
	}
	if !p.json {
		printScanLine(p.w, p.e, res)
		return
	}
	if err := writeJSON(p.w, res); err != nil {
		p.e.log.Watch("write scan result: %v", err)
		p.err = fmt.Errorf("write scan result: %w", err)
		p.stop()
	}
}

func printScanLine(w io.Writer, e *env, res *dedupe.Result) {
	stamp := time.Now().Format("15:04:05")
	if len(res.Groups) == 0 {
		fmt.Fprintf(w, "%s  %d files, no duplicates\n", stamp, res.Scanned)
		return
	}
	fmt.Fprintf(w, "%s  %d files, %d duplicate(s) in %d group(s)\n",
		stamp, res.Scanned, len(res.Duplicates()), len(res.Groups))
	for _, g := range res.Groups {
		for _, d := range g.Duplicates {
			fmt.Fprintf(w, "    %s = %s\n", e.display(d), e.display(g.Canonical))
		}
	}
}

// mcpCommand serves the engine over stdio. Stdout belongs to the protocol,
// so debug output goes to a log file.
func mcpCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	log := debug.Discard()
	if c.Bool("verbose") || debug.EnvEnabled() {
		fileLog, path, err := debug.OpenFile()
		if err != nil {
			return err
		}
		defer fileLog.Close()
		fmt.Fprintf(c.App.ErrWriter, "gtc mcp: debug log at %s\n", path)
		log = fileLog
	}

	server, err := mcp.NewServer(e.fs, e.cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Start(c.Context)
}
