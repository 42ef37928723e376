package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/libgit2/git2go.v26"
)

// gitCommitter records written files as one commit on the current branch.
type gitCommitter struct {
	repo  *git.Repository
	name  string
	email string
}

func openGit(path, name, email string) (*gitCommitter, error) {
	repo, err := git.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", path, err)
	}
	return &gitCommitter{repo: repo, name: name, email: email}, nil
}

// addFileAndCommit stages paths (resolved against root) and commits them with message. It
// returns the new commit id.
func (g *gitCommitter) addFileAndCommit(root string, paths []string, message string) (string, error) {
	sig := &git.Signature{
		Name:  g.name,
		Email: g.email,
		When:  time.Now(),
	}
	index, err := g.repo.Index()
	if err != nil {
		return "", err
	}
	defer index.Free()

	workdir := g.repo.Workdir()
	for _, path := range paths {
		rel, err := g.relative(workdir, root, path)
		if err != nil {
			return "", err
		}
		if err := index.AddByPath(rel); err != nil {
			return "", fmt.Errorf("stage %s: %w", rel, err)
		}
	}
	if err := index.Write(); err != nil {
		return "", err
	}
	treeID, err := index.WriteTree()
	if err != nil {
		return "", err
	}
	tree, err := g.repo.LookupTree(treeID)
	if err != nil {
		return "", err
	}
	defer tree.Free()

	var parents []*git.Commit
	if unborn, _ := g.repo.IsHeadUnborn(); !unborn {
		currentBranch, err := g.repo.Head()
		if err != nil {
			return "", err
		}
		currentTip, err := g.repo.LookupCommit(currentBranch.Target())
		if err != nil {
			return "", err
		}
		defer currentTip.Free()
		parents = append(parents, currentTip)
	}
	commitID, err := g.repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	if err != nil {
		return "", err
	}
	return commitID.String(), nil
}

func (g *gitCommitter) relative(workdir, root, path string) (string, error) {
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(workdir, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository %s", abs, workdir)
	}
	return filepath.ToSlash(rel), nil
}
