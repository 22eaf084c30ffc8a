package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// GitPublisher keeps a working clone of the notes repository in Dir.
type GitPublisher struct {
	RepoURL string
	Dir     string
	Auth    transport.AuthMethod
	Author  object.Signature

	logger *slog.Logger
	mu     sync.Mutex
}

func NewGitPublisher(repoURL, dir string, auth transport.AuthMethod, logger *slog.Logger) *GitPublisher {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "qbot-notes")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitPublisher{
		RepoURL: repoURL,
		Dir:     dir,
		Auth:    auth,
		Author:  object.Signature{Name: "QBot", Email: "qbot@localhost"},
		logger:  logger,
	}
}

// NewAuth picks token auth for http(s) remotes and key auth otherwise.
// An empty knownHosts path disables host key checking.
func NewAuth(repoURL, sshKeyPath, knownHostsPath, token string) (transport.AuthMethod, error) {
	isHTTP := strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://")
	if isHTTP {
		if token == "" {
			return nil, nil
		}
		return &githttp.BasicAuth{Username: "x-access-token", Password: token}, nil
	}
	if sshKeyPath == "" {
		return nil, nil
	}
	keys, err := gitssh.NewPublicKeysFromFile("git", sshKeyPath, "")
	if err != nil {
		return nil, fmt.Errorf("load ssh key: %w", err)
	}
	if knownHostsPath != "" {
		cb, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		keys.HostKeyCallback = cb
	} else {
		keys.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return keys, nil
}

func (p *GitPublisher) open(ctx context.Context) (*git.Repository, error) {
	repo, err := git.PlainOpen(p.Dir)
	if err == nil {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin", Auth: p.Auth})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil, fmt.Errorf("pull: %w", err)
		}
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, err
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, err
	}
	repo, err = git.PlainCloneContext(ctx, p.Dir, false, &git.CloneOptions{URL: p.RepoURL, Auth: p.Auth})
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	return repo, nil
}

func (p *GitPublisher) Publish(ctx context.Context, files []File, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	repo, err := p.open(ctx)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	for _, f := range files {
		full := filepath.Join(p.Dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return err
		}
		if _, err := wt.Add(f.Path); err != nil {
			return fmt.Errorf("add %s: %w", f.Path, err)
		}
	}

	author := p.Author
	author.When = time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", Auth: p.Auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	p.logger.Info("notes pushed", "commit", hash.String(), "files", len(files))
	return nil
}
