package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gtc/internal/config"
	"github.com/standardbeagle/gtc/testhelpers"
)

func newTestServer(t *testing.T, c *testhelpers.Corpus) *Server {
	t.Helper()
	cfg := config.Default(c.Root)
	s, err := NewServer(c.Fs, cfg, nil)
	require.NoError(t, err)
	return s
}

func call(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args interface{}) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func decode(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func duplicateCorpus(t *testing.T) *testhelpers.Corpus {
	return testhelpers.NewMemCorpus(t).
		Record("", "0001", "a", ".png", ".gt.txt").
		Record("", "0002", "a", ".png", ".txt").
		Record("", "0003", "b", ".png").
		Record("", "0004", "b", ".png")
}

func TestNewServer_RejectsInvalidConfig(t *testing.T) {
	c := testhelpers.NewMemCorpus(t)
	cfg := config.Default(c.Root)
	cfg.Renumber.Width = 0

	_, err := NewServer(c.Fs, cfg, nil)
	require.Error(t, err)

	_, err = NewServer(c.Fs, nil, nil)
	require.Error(t, err)
}

func TestFindDuplicatesTool(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)
	before := c.Snapshot()

	res := call(t, s.handleFindDuplicates, CorpusParams{})
	require.False(t, res.IsError)

	var got struct {
		Groups []struct {
			Canonical  string   `json:"canonical"`
			Duplicates []string `json:"duplicates"`
		} `json:"groups"`
		Scanned int `json:"scanned"`
	}
	decode(t, res, &got)

	assert.Equal(t, 4, got.Scanned)
	require.Len(t, got.Groups, 2)
	assert.Equal(t, c.Path("0001.png"), got.Groups[0].Canonical)
	assert.Equal(t, c.Paths("0002.png"), got.Groups[0].Duplicates)
	assert.Equal(t, c.Paths("0004.png"), got.Groups[1].Duplicates)
	assert.Equal(t, before, c.Snapshot(), "read-only tool must not touch the corpus")
	assert.Len(t, c.Names(), 6)
}

func TestFindDuplicatesTool_SelectorOverride(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)

	res := call(t, s.handleFindDuplicates, CorpusParams{Selector: "*.gt.txt"})
	require.False(t, res.IsError)

	var got struct {
		Groups []json.RawMessage `json:"groups"`
	}
	decode(t, res, &got)
	assert.NotNil(t, got.Groups)
	assert.Empty(t, got.Groups)
}

func TestFindDuplicatesTool_BadRoot(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)

	res := call(t, s.handleFindDuplicates, CorpusParams{Root: "missing"})
	assert.True(t, res.IsError)

	var got map[string]interface{}
	decode(t, res, &got)
	assert.Equal(t, "find_duplicates", got["operation"])
	assert.Contains(t, got, "help")
}

func TestFindDuplicatesTool_BadSelector(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)

	res := call(t, s.handleFindDuplicates, CorpusParams{Selector: "re:("})
	assert.True(t, res.IsError)
}

func TestDeleteDuplicatesTool(t *testing.T) {
	tests := []struct {
		name      string
		params    DeleteParams
		deleted   []string
		remaining []string
	}{
		{
			name:      "primaries only",
			params:    DeleteParams{},
			deleted:   []string{"0002.png", "0004.png"},
			remaining: []string{"0001.gt.txt", "0001.png", "0002.txt", "0003.png"},
		},
		{
			name:      "with companions",
			params:    DeleteParams{WithCompanions: true},
			deleted:   []string{"0002.png", "0002.txt", "0004.png"},
			remaining: []string{"0001.gt.txt", "0001.png", "0003.png"},
		},
		{
			name:      "dry run",
			params:    DeleteParams{WithCompanions: true, DryRun: true},
			deleted:   []string{"0002.png", "0002.txt", "0004.png"},
			remaining: []string{"0001.gt.txt", "0001.png", "0002.png", "0002.txt", "0003.png", "0004.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := duplicateCorpus(t)
			s := newTestServer(t, c)

			res := call(t, s.handleDeleteDuplicates, tt.params)
			require.False(t, res.IsError)

			var got DeleteResponse
			decode(t, res, &got)
			assert.Equal(t, tt.params.DryRun, got.DryRun)
			assert.Equal(t, c.Paths(tt.deleted...), got.Deleted)
			assert.Empty(t, got.Failed)
			assert.Equal(t, tt.remaining, c.Names())
		})
	}
}

func TestDeleteDuplicatesTool_ReportsFailures(t *testing.T) {
	c := duplicateCorpus(t)
	ffs := testhelpers.NewFaultFs(c.Fs).FailRemove(c.Path("0002.png"))
	s, err := NewServer(ffs, config.Default(c.Root), nil)
	require.NoError(t, err)

	res := call(t, s.handleDeleteDuplicates, DeleteParams{})
	require.False(t, res.IsError, "per-file failures are data, not tool errors")

	var got DeleteResponse
	decode(t, res, &got)
	assert.Equal(t, c.Paths("0004.png"), got.Deleted)
	require.Len(t, got.Failed, 1)
	assert.Equal(t, c.Path("0002.png"), got.Failed[0].Path)
	assert.Equal(t, "delete", got.Failed[0].Operation)
}

func TestDeleteDuplicatesTool_CancelledDeletesNothing(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)
	before := c.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.handleDeleteDuplicates(ctx, &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	require.NoError(t, err)

	var got DeleteResponse
	decode(t, res, &got)
	assert.True(t, got.Cancelled)
	assert.Empty(t, got.Deleted)
	assert.Equal(t, before, c.Snapshot())
}

func TestCompanionsTool(t *testing.T) {
	c := duplicateCorpus(t)
	s := newTestServer(t, c)

	res := call(t, s.handleCompanions, CompanionsParams{Path: "0001.png"})
	require.False(t, res.IsError)

	var got struct {
		Path       string   `json:"path"`
		Stem       string   `json:"stem"`
		Companions []string `json:"companions"`
	}
	decode(t, res, &got)
	assert.Equal(t, c.Path("0001.png"), got.Path)
	assert.Equal(t, "0001", got.Stem)
	assert.ElementsMatch(t, c.Paths("0001.png", "0001.gt.txt"), got.Companions)

	res = call(t, s.handleCompanions, CompanionsParams{})
	assert.True(t, res.IsError)
}

func TestRenumberTool(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		Record("", "a", "1", ".png", ".txt").
		Record("", "b", "2", ".png").
		Record("", "0003", "3", ".png")
	s := newTestServer(t, c)

	res := call(t, s.handleRenumber, RenumberParams{Width: 2, DryRun: true})
	require.False(t, res.IsError)

	var plan RenumberResponse
	decode(t, res, &plan)
	assert.Equal(t, 3, plan.Changes)
	require.Len(t, plan.Plan, 3)
	assert.Nil(t, plan.Report)
	assert.Equal(t, []string{"0003.png", "a.png", "a.txt", "b.png"}, c.Names())

	res = call(t, s.handleRenumber, RenumberParams{Width: 2})
	require.False(t, res.IsError)

	var done RenumberResponse
	decode(t, res, &done)
	require.NotNil(t, done.Report)
	assert.Equal(t, 3, done.Report.Renamed)
	assert.Empty(t, done.Failed)
	assert.Equal(t, []string{"01.png", "02.png", "02.txt", "03.png"}, c.Names())
}

func TestRenumberTool_InvalidWidth(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).Record("", "a", "1", ".png")
	s := newTestServer(t, c)

	res := call(t, s.handleRenumber, RenumberParams{Width: 40})
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"a.png"}, c.Names())
}

func TestRecordStatusTool(t *testing.T) {
	c := testhelpers.NewMemCorpus(t).
		Record("", "1", "x", ".png", ".gt.txt").
		Record("", "2", "y", ".png", ".txt").
		Record("", "10", "z", ".png")
	s := newTestServer(t, c)

	res := call(t, s.handleRecordStatus, StatusParams{})
	require.False(t, res.IsError)

	var got struct {
		Records []struct {
			Stem   string `json:"stem"`
			Status string `json:"status"`
		} `json:"records"`
		Counts map[string]int `json:"counts"`
	}
	decode(t, res, &got)
	require.Len(t, got.Records, 3)
	assert.Equal(t, "1", got.Records[0].Stem)
	assert.Equal(t, "finished", got.Records[0].Status)
	assert.Equal(t, "2", got.Records[1].Stem)
	assert.Equal(t, "unfinished", got.Records[1].Status)
	assert.Equal(t, "10", got.Records[2].Stem)
	assert.Equal(t, "missing", got.Records[2].Status)
	assert.Equal(t, map[string]int{"finished": 1, "unfinished": 1, "missing": 1}, got.Counts)

	res = call(t, s.handleRecordStatus, StatusParams{Stem: "2"})
	require.False(t, res.IsError)
	decode(t, res, &got)
	require.Len(t, got.Records, 1)

	res = call(t, s.handleRecordStatus, StatusParams{Stem: "99"})
	assert.True(t, res.IsError)
}
