// Package selector decides which file names count as record primaries.
// Selectors match the base name only, never the directory part.
package selector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/gtc/internal/errors"
)

// Selector matches base file names
type Selector interface {
	Match(name string) bool
	String() string
}

// Prefixes accepted by Parse
const (
	RegexPrefix      = "re:"
	RegexLongPrefix  = "regex:"
	GlobPrefix       = "glob:"
	DefaultSelection = "*.png"
)

type globSelector struct {
	pattern string
}

// Glob builds a doublestar glob selector (e.g. "*.png", "{*.png,*.jpg}")
func Glob(pattern string) (Selector, error) {
	if pattern == "" {
		return nil, errors.NewConfigError("selector", pattern, fmt.Errorf("empty glob pattern"))
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.NewConfigError("selector", pattern, doublestar.ErrBadPattern)
	}
	return globSelector{pattern: pattern}, nil
}

func (g globSelector) Match(name string) bool {
	// pattern validity was checked at construction
	ok, _ := doublestar.Match(g.pattern, name)
	return ok
}

func (g globSelector) String() string {
	return GlobPrefix + g.pattern
}

type regexSelector struct {
	expr string
	re   *regexp.Regexp
}

// Regex builds a selector that must match the whole name
func Regex(expr string) (Selector, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, errors.NewConfigError("selector", expr, err)
	}
	return regexSelector{expr: expr, re: re}, nil
}

func (r regexSelector) Match(name string) bool {
	return r.re.MatchString(name)
}

func (r regexSelector) String() string {
	return RegexPrefix + r.expr
}

type anySelector struct{}

// Any matches every name
func Any() Selector {
	return anySelector{}
}

func (anySelector) Match(string) bool { return true }
func (anySelector) String() string    { return GlobPrefix + "*" }

// Parse reads "re:<expr>", "regex:<expr>", "glob:<pattern>" or a bare glob
func Parse(s string) (Selector, error) {
	switch {
	case strings.HasPrefix(s, RegexPrefix):
		return Regex(strings.TrimPrefix(s, RegexPrefix))
	case strings.HasPrefix(s, RegexLongPrefix):
		return Regex(strings.TrimPrefix(s, RegexLongPrefix))
	case strings.HasPrefix(s, GlobPrefix):
		return Glob(strings.TrimPrefix(s, GlobPrefix))
	default:
		return Glob(s)
	}
}

// MustParse is Parse for known-good literals
func MustParse(s string) Selector {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}
