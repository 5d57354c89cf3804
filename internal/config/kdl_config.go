package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/errors"
)

// KDLFile is the preferred config file name
const KDLFile = ".gtc.kdl"

// LoadKDL loads .gtc.kdl from dir. A missing file yields (nil, nil).
func LoadKDL(fsys afero.Fs, dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, KDLFile)

	content, err := afero.ReadFile(fsys, kdlPath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil // No KDL config found, use defaults
	}
	if err != nil {
		return nil, errors.NewConfigError("file", kdlPath, err)
	}

	cfg, err := parseKDL(string(content), dir)
	if err != nil {
		return nil, errors.NewConfigError("file", kdlPath, err)
	}
	return cfg, nil
}

// parseKDL reads a document like
//
//	corpus {
//	    root "."
//	    selector "*.png"
//	    exclude "**/.*/**" "**/tmp/**"
//	}
//	renumber { width 4 }
//
// over the defaults. Relative roots resolve against dir.
func parseKDL(content, dir string) (*Config, error) {
	cfg := Default("")

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "corpus":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Corpus.Root = v })
				assignSimpleString(cn, "selector", func(v string) { cfg.Corpus.Selector = v })
				switch nodeName(cn) {
				case "exclude":
					cfg.Corpus.Exclude = collectStringArgs(cn)
				case "respect_ignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Corpus.RespectIgnore = b
					}
				}
			}
		case "renumber":
			for _, cn := range n.Children {
				if nodeName(cn) == "width" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Renumber.Width = v
					}
				}
			}
		case "progress":
			for _, cn := range n.Children {
				if nodeName(cn) == "interval_ms" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Progress.IntervalMs = v
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				if nodeName(cn) == "debounce_ms" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "lock":
			for _, cn := range n.Children {
				if nodeName(cn) == "enabled" {
					if b, ok := firstBoolArg(cn); ok {
						cfg.Lock.Enabled = b
					}
				}
			}
		default:
			log.Printf("WARNING: unknown section '%s' in %s", nodeName(n), KDLFile)
		}
	}

	cfg.Corpus.Root = resolveRoot(cfg.Corpus.Root, dir)
	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in %s, got %T", nodeName(n), KDLFile, n.Arguments[0].Value)
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs accepts both the inline form (exclude "a" "b") and the
// block form (exclude { "a"; "b" })
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// the node name itself is the value
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
