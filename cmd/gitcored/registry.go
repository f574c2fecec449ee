// Command gitcored is the thin composition root wiring gitcore's
// packages into a running server process: a registry of per-repository
// Repository values, an HTTP smart-transport front door
// (pkg/serve/httpserver's gorilla/mux-router shape) and an SSH front
// door (pkg/serve/sshserver's gliderlabs/ssh shape), both routing
// upload-pack/receive-pack onto the same repository.Repository methods.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dot-do/gitcore/config"
	"github.com/dot-do/gitcore/repository"
)

// Registry is a process-wide map of open repositories, keyed by name,
// mirroring pkg/serve/repo.Repositories but without its OSS/DB
// multi-tenant plumbing — each request routes to the one repository
// instance that owns it, so the registry's only job is opening (once)
// and closing repositories on disk.
type Registry struct {
	root string
	cfg  *config.Config

	mu    sync.Mutex
	repos map[string]*repository.Repository
}

func NewRegistry(root string, cfg *config.Config) *Registry {
	return &Registry{root: root, cfg: cfg, repos: map[string]*repository.Repository{}}
}

// Open returns the repository named name, opening it on first access.
func (reg *Registry) Open(name string) (*repository.Repository, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.repos[name]; ok {
		return r, nil
	}
	dir := filepath.Join(reg.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gitcored: mkdir %s: %w", dir, err)
	}
	r, err := repository.Open(dir, name, reg.cfg)
	if err != nil {
		return nil, err
	}
	reg.repos[name] = r
	logrus.WithField("repo", name).Info("opened repository")
	return r, nil
}

// Close closes every repository currently open in the registry.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for name, r := range reg.repos {
		if err := r.Close(); err != nil {
			logrus.WithField("repo", name).WithError(err).Error("close repository")
		}
	}
}
