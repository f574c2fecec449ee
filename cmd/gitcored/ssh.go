package main

import (
	"fmt"
	"strings"

	"github.com/gliderlabs/ssh"
	"github.com/sirupsen/logrus"

	"github.com/dot-do/gitcore/repository"
)

// SSHServer is the SSH smart-transport front door, modeled on
// pkg/serve/sshserver.Server (gliderlabs/ssh, PublicKeyHandler + session
// Handler shape), but dispatching the two standard Git SSH commands
// ("git-upload-pack '<repo>'" / "git-receive-pack '<repo>'") instead of
// a zeta-specific subcommand set.
type SSHServer struct {
	reg     *Registry
	srv     *ssh.Server
	addr    string
	pubKeys func(ssh.Context, ssh.PublicKey) bool
}

func NewSSHServer(reg *Registry, addr string) *SSHServer {
	s := &SSHServer{reg: reg, addr: addr}
	s.pubKeys = func(ctx ssh.Context, key ssh.PublicKey) bool { return true } // authn/z is out of scope
	s.srv = &ssh.Server{
		Addr:             addr,
		PublicKeyHandler: s.pubKeys,
		Handler:          s.handleSession,
	}
	return s
}

func (s *SSHServer) ListenAndServe() error {
	logrus.WithField("addr", s.addr).Info("gitcore SSH server listening")
	return s.srv.ListenAndServe()
}

func parseGitCommand(raw string) (cmd, repoName string, ok bool) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return "", "", false
	}
	cmd = fields[0]
	repoName = strings.Trim(strings.Join(fields[1:], " "), "'\"")
	repoName = strings.TrimSuffix(strings.TrimPrefix(repoName, "/"), ".git")
	return cmd, repoName, cmd == "git-upload-pack" || cmd == "git-receive-pack"
}

func (s *SSHServer) handleSession(sess ssh.Session) {
	cmd, repoName, ok := parseGitCommand(sess.RawCommand())
	if !ok {
		fmt.Fprintln(sess.Stderr(), "gitcore: unsupported command")
		sess.Exit(1)
		return
	}
	repo, err := s.reg.Open(repoName)
	if err != nil {
		fmt.Fprintf(sess.Stderr(), "gitcore: %v\n", err)
		sess.Exit(1)
		return
	}

	switch cmd {
	case "git-upload-pack":
		s.serveUploadPack(sess, repo)
	case "git-receive-pack":
		s.serveReceivePack(sess, repo)
	}
}

func (s *SSHServer) serveUploadPack(sess ssh.Session, repo *repository.Repository) {
	if err := repo.UploadPackSession(sess, sess); err != nil {
		logrus.WithError(err).Error("ssh upload-pack")
		sess.Exit(1)
		return
	}
	sess.Exit(0)
}

func (s *SSHServer) serveReceivePack(sess ssh.Session, repo *repository.Repository) {
	if err := repo.ReceivePackSession(sess, sess); err != nil {
		logrus.WithError(err).Error("ssh receive-pack")
		sess.Exit(1)
		return
	}
	sess.Exit(0)
}
