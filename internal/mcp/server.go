package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/config"
	"github.com/standardbeagle/gtc/internal/debug"
	"github.com/standardbeagle/gtc/internal/dedupe"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/renumber"
	"github.com/standardbeagle/gtc/internal/selector"
	"github.com/standardbeagle/gtc/internal/version"
)

// Server exposes the corpus engine as MCP tools. Tool calls are serialized:
// the engine never runs two operations on the corpus at once.
type Server struct {
	cfg        *config.Config
	fs         afero.Fs
	detector   *dedupe.Detector
	renumberer *renumber.Renumberer
	log        *debug.Logger

	mu     sync.Mutex
	server *mcp.Server
}

// NewServer creates a server for the corpus described by cfg. The logger must
// not write to stdout, which belongs to the transport.
func NewServer(fsys afero.Fs, cfg *config.Config, log *debug.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	progressOpts := []progress.Option{progress.WithInterval(cfg.ProgressInterval())}
	s := &Server{
		cfg: cfg,
		fs:  fsys,
		detector: dedupe.New(dedupe.Options{
			Fs:       fsys,
			Exclude:  cfg.Corpus.Exclude,
			Logger:   log,
			Progress: progressOpts,
		}),
		renumberer: renumber.New(renumber.Options{
			Fs:       fsys,
			Exclude:  cfg.Corpus.Exclude,
			Logger:   log,
			Progress: progressOpts,
		}),
		log: log,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "gtc",
		Version: version.Version,
	}, nil)
	s.registerTools()

	log.MCP("server initialized for %s", cfg.Corpus.Root)
	return s, nil
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	corpusProps := func(extra map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
		props := map[string]*jsonschema.Schema{
			"root": {
				Type:        "string",
				Description: "Corpus directory, absolute or relative to the configured root (default: configured root)",
			},
			"selector": {
				Type:        "string",
				Description: "Primary file selector: a glob such as '*.png', or a regex with a 're:' prefix (default: configured selector)",
			},
		}
		for k, v := range extra {
			props[k] = v
		}
		return props
	}

	s.server.AddTool(&mcp.Tool{
		Name:        "find_duplicates",
		Description: "Group selected files by content fingerprint. The first file of each group in scan order is canonical; the rest are duplicates. Read-only.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: corpusProps(nil),
		},
	}, s.handleFindDuplicates)

	s.server.AddTool(&mcp.Tool{
		Name:        "delete_duplicates",
		Description: "Delete every duplicate reported by find_duplicates. With with_companions, each duplicate's companions (same directory, same stem) are deleted too; canonical records are never touched.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: corpusProps(map[string]*jsonschema.Schema{
				"with_companions": {
					Type:        "boolean",
					Description: "Also delete the companions of each duplicate",
				},
				"dry_run": {
					Type:        "boolean",
					Description: "Report what would be deleted without deleting",
				},
			}),
		},
	}, s.handleDeleteDuplicates)

	s.server.AddTool(&mcp.Tool{
		Name:        "companions",
		Description: "List the files in the same directory that share the stem of path, path included.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File whose record to list, absolute or relative to the configured root",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleCompanions)

	s.server.AddTool(&mcp.Tool{
		Name:        "renumber",
		Description: "Rename records to a dense zero-padded sequence 1..N in scan order, moving companions with their primary. Never overwrites an existing file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: corpusProps(map[string]*jsonschema.Schema{
				"width": {
					Type:        "integer",
					Description: "Digits in the new stems (default: configured width)",
				},
				"dry_run": {
					Type:        "boolean",
					Description: "Return the rename plan without renaming",
				},
			}),
		},
	}, s.handleRenumber)

	s.server.AddTool(&mcp.Tool{
		Name:        "record_status",
		Description: "List the records of one directory with their transcription status (missing, unfinished, finished).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"dir": {
					Type:        "string",
					Description: "Directory to list, absolute or relative to the configured root (default: configured root)",
				},
				"selector": {
					Type:        "string",
					Description: "Primary file selector (default: configured selector)",
				},
				"stem": {
					Type:        "string",
					Description: "Only report the record with this stem",
				},
			},
		},
	}, s.handleRecordStatus)
}

// Start serves tools over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.log.MCP("starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// resolve interprets p relative to the configured corpus root
func (s *Server) resolve(p string) string {
	if p == "" {
		return s.cfg.Corpus.Root
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.cfg.Corpus.Root, p)
}

func (s *Server) selector(expr string) (selector.Selector, error) {
	if expr == "" {
		return s.cfg.Selector()
	}
	return selector.Parse(expr)
}
