package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/plugin/public"
	"github.com/oi-archive/usaco-crawler/rpc"
)

// archive writes file lists below root and, with git enabled, commits them. It serves the
// rpc API for remote crawlers.
type archive struct {
	root string
	git  *gitCommitter
	log  logger.Logger
}

// store persists fl and returns the commit id, or "" without git.
func (a *archive) store(fl public.FileList, message string) (string, error) {
	if err := public.WriteFiles(a.root, fl); err != nil {
		return "", err
	}
	a.log.Info("Files written", logger.String("root", a.root), logger.Int("files", len(fl)))
	if a.git == nil {
		return "", nil
	}
	commit, err := a.git.addFileAndCommit(a.root, fl.Paths(), message)
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	a.log.Info("Files committed", logger.String("commit", commit))
	return commit, nil
}

// Update implements rpc.APIServer.
func (a *archive) Update(ctx context.Context, in *rpc.UpdateRequest) (*rpc.UpdateReply, error) {
	if in.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "missing crawler id")
	}
	for p := range in.File {
		if err := checkArchivePath(p); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	a.log.Info("Update received", logger.String("crawler", in.Id), logger.Int("files", len(in.File)))
	commit, err := a.store(public.FileList(in.File), in.Message)
	if err != nil {
		a.log.Error("Update failed", logger.String("crawler", in.Id), logger.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &rpc.UpdateReply{Ok: true, Commit: commit}, nil
}

// checkArchivePath accepts clean relative slash paths that stay below the archive root.
func checkArchivePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("invalid path %q", p)
	}
	if clean := path.Clean(p); clean != p || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid path %q", p)
	}
	return nil
}
