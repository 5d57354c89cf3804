package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gtc/internal/dedupe"
	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/internal/record"
	"github.com/standardbeagle/gtc/internal/renumber"
	"github.com/standardbeagle/gtc/internal/stem"
)

// CorpusParams selects the corpus a tool runs on
type CorpusParams struct {
	Root     string `json:"root,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// DeleteParams for delete_duplicates
type DeleteParams struct {
	CorpusParams
	WithCompanions bool `json:"with_companions,omitempty"`
	DryRun         bool `json:"dry_run,omitempty"`
}

// CompanionsParams for companions
type CompanionsParams struct {
	Path string `json:"path"`
}

// RenumberParams for renumber
type RenumberParams struct {
	CorpusParams
	Width  int  `json:"width,omitempty"`
	DryRun bool `json:"dry_run,omitempty"`
}

// StatusParams for record_status
type StatusParams struct {
	Dir      string `json:"dir,omitempty"`
	Selector string `json:"selector,omitempty"`
	Stem     string `json:"stem,omitempty"`
}

// DeleteResponse lists what delete_duplicates removed, or would remove
type DeleteResponse struct {
	Root      string        `json:"root"`
	DryRun    bool          `json:"dry_run"`
	Deleted   []string      `json:"deleted"`
	Failed    []fileFailure `json:"failed,omitempty"`
	Cancelled bool          `json:"cancelled"`
}

// RenumberResponse carries either a plan (dry run) or an execution report
type RenumberResponse struct {
	Root    string           `json:"root"`
	Width   int              `json:"width"`
	Changes int              `json:"changes"` // moves that change a stem
	Plan    []renumber.Move  `json:"plan,omitempty"`
	Report  *renumber.Report `json:"report,omitempty"`
	Failed  []fileFailure    `json:"failed,omitempty"`
}

func parseArgs(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleFindDuplicates(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p CorpusParams
	if err := parseArgs(req, &p); err != nil {
		return createErrorResponse("find_duplicates", err)
	}
	sel, err := s.selector(p.Selector)
	if err != nil {
		return createErrorResponse("find_duplicates", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.resolve(p.Root)
	s.log.MCP("find_duplicates root=%s selector=%s", root, sel)
	res, err := s.detector.Scan(root, sel, progress.FromContext(ctx, nil))
	if err != nil {
		return createErrorResponse("find_duplicates", err)
	}
	if res.Groups == nil {
		res.Groups = []dedupe.Group{}
	}
	return createJSONResponse(res)
}

func (s *Server) handleDeleteDuplicates(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p DeleteParams
	if err := parseArgs(req, &p); err != nil {
		return createErrorResponse("delete_duplicates", err)
	}
	sel, err := s.selector(p.Selector)
	if err != nil {
		return createErrorResponse("delete_duplicates", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.resolve(p.Root)
	s.log.MCP("delete_duplicates root=%s companions=%v dry_run=%v", root, p.WithCompanions, p.DryRun)

	res, err := s.detector.Scan(root, sel, progress.FromContext(ctx, nil))
	if err != nil {
		return createErrorResponse("delete_duplicates", err)
	}
	resp := &DeleteResponse{Root: root, DryRun: p.DryRun, Deleted: []string{}}
	if res.Cancelled {
		// a partial scan is not a safe basis for deletion
		resp.Cancelled = true
		return createJSONResponse(resp)
	}

	targets := res.Duplicates()
	if p.WithCompanions {
		if targets, err = s.detector.ExpandWithCompanions(res); err != nil {
			return createErrorResponse("delete_duplicates", err)
		}
	}
	if p.DryRun {
		resp.Deleted = append(resp.Deleted, targets...)
		return createJSONResponse(resp)
	}

	deleted, err := s.detector.Remove(targets)
	resp.Deleted = append(resp.Deleted, deleted...)
	resp.Failed = fileFailures(err)
	return createJSONResponse(resp)
}

func (s *Server) handleCompanions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p CompanionsParams
	if err := parseArgs(req, &p); err != nil {
		return createErrorResponse("companions", err)
	}
	if p.Path == "" {
		return createErrorResponse("companions", fmt.Errorf("path is required"))
	}

	path := s.resolve(p.Path)
	companions, err := stem.CompanionsOf(s.fs, path)
	if err != nil {
		return createErrorResponse("companions", err)
	}
	return createJSONResponse(map[string]interface{}{
		"path":       path,
		"stem":       stem.Of(path),
		"companions": companions,
	})
}

func (s *Server) handleRenumber(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p RenumberParams
	if err := parseArgs(req, &p); err != nil {
		return createErrorResponse("renumber", err)
	}
	sel, err := s.selector(p.Selector)
	if err != nil {
		return createErrorResponse("renumber", err)
	}
	width := p.Width
	if width == 0 {
		width = s.cfg.Renumber.Width
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.resolve(p.Root)
	s.log.MCP("renumber root=%s width=%d dry_run=%v", root, width, p.DryRun)

	plan, err := s.renumberer.Plan(root, sel, width)
	if err != nil {
		return createErrorResponse("renumber", err)
	}
	resp := &RenumberResponse{Root: root, Width: width}
	for _, m := range plan.Moves {
		if !m.Identity() {
			resp.Changes++
		}
	}
	if p.DryRun {
		resp.Plan = plan.Moves
		return createJSONResponse(resp)
	}

	rep, err := s.renumberer.Apply(plan, progress.FromContext(ctx, nil))
	resp.Report = rep
	resp.Failed = fileFailures(err)
	return createJSONResponse(resp)
}

func (s *Server) handleRecordStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p StatusParams
	if err := parseArgs(req, &p); err != nil {
		return createErrorResponse("record_status", err)
	}
	sel, err := s.selector(p.Selector)
	if err != nil {
		return createErrorResponse("record_status", err)
	}

	dir := s.resolve(p.Dir)
	records, err := record.List(s.fs, dir, sel)
	if err != nil {
		return createErrorResponse("record_status", err)
	}

	counts := map[string]int{}
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if p.Stem != "" && r.Stem != p.Stem {
			continue
		}
		counts[r.Status.String()]++
		out = append(out, r)
	}
	if p.Stem != "" && len(out) == 0 {
		return createErrorResponse("record_status", fmt.Errorf("no record with stem %q in %s", p.Stem, filepath.Clean(dir)))
	}

	return createJSONResponse(map[string]interface{}{
		"dir":     dir,
		"records": out,
		"counts":  counts,
	})
}
