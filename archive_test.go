package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/plugin/usaco"
	"github.com/oi-archive/usaco-crawler/rpc"
)

func TestCheckArchivePath(t *testing.T) {
	for _, p := range []string{"problems.json", "content/extraProblems.json", "a/b/c.txt"} {
		assert.NoError(t, checkArchivePath(p), p)
	}
	for _, p := range []string{"", "/etc/passwd", "../x", "..", "a/../../x", "a/./b", "a\\b", "a//b"} {
		assert.Error(t, checkArchivePath(p), p)
	}
}

func TestArchiveUpdate(t *testing.T) {
	root := t.TempDir()
	a := &archive{root: root, log: logger.NewNop()}

	r, err := a.Update(context.Background(), &rpc.UpdateRequest{
		Id:      "usaco",
		Message: "Problemset USACO updated",
		File:    map[string][]byte{"out/report.txt": []byte("added")},
	})
	require.NoError(t, err)
	assert.True(t, r.Ok)
	assert.Empty(t, r.Commit)

	b, err := os.ReadFile(filepath.Join(root, "out", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "added", string(b))
}

func TestArchiveUpdateRejectsBadRequests(t *testing.T) {
	root := t.TempDir()
	a := &archive{root: root, log: logger.NewNop()}

	_, err := a.Update(context.Background(), &rpc.UpdateRequest{File: map[string][]byte{"a": nil}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = a.Update(context.Background(), &rpc.UpdateRequest{
		Id:   "usaco",
		File: map[string][]byte{"ok.txt": nil, "../escape.txt": []byte("x")},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, statErr := os.Stat(filepath.Join(root, "ok.txt"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written when any path is rejected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Update(ctx, &rpc.UpdateRequest{Id: "usaco"})
	assert.Equal(t, codes.Canceled, status.Code(err))
}

type missingProber struct{}

func (missingProber) Probe(_ context.Context, id int) usaco.ProbeResult {
	return usaco.ProbeResult{ID: id, Outcome: usaco.NotAContest, Err: usaco.ErrNotAContest}
}

func TestRunUpdateNothingToDo(t *testing.T) {
	dir := t.TempDir()
	cfg := usaco.Config{
		Paths: usaco.Paths{
			Problems: filepath.Join(dir, "problems.json"),
			Report:   filepath.Join(dir, "report.txt"),
		},
		Crawl: usaco.CrawlConfig{MaxGap: 2},
	}
	a := &app{log: logger.NewNop(), plugin: usaco.New(cfg, missingProber{}, logger.NewNop())}

	err := a.runUpdate(context.Background(), "crawl", a.plugin.Crawl)
	assert.ErrorIs(t, err, errNothingToDo)
	_, statErr := os.Stat(cfg.Paths.Report)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRootHelpDocumentsExitStatuses(t *testing.T) {
	root := newRootCommand(viper.New())
	assert.Contains(t, root.Long, fmt.Sprintf("  %d  files were added or changed", exitOK))
	assert.Contains(t, root.Long, fmt.Sprintf("  %d  the run failed", exitError))
	assert.Contains(t, root.Long, fmt.Sprintf("  %d  the run succeeded but there was nothing to do", exitNothingToDo))
}
