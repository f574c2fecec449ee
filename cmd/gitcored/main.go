package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dot-do/gitcore/config"
)

func main() {
	var (
		dataDir    = flag.String("data-dir", "./data", "root directory under which each repository is stored")
		httpAddr   = flag.String("http-addr", ":8080", "smart-HTTP listen address")
		sshAddr    = flag.String("ssh-addr", ":2222", "SSH listen address")
		configPath = flag.String("config", "", "path to a TOML config file (defaults applied otherwise)")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logrus.WithError(err).Fatal("create data dir")
	}
	reg := NewRegistry(filepath.Join(*dataDir, "repos"), cfg)
	defer reg.Close()

	httpSrv := NewHTTPServer(reg)
	sshSrv := NewSSHServer(reg, *sshAddr)

	var g errgroup.Group
	g.Go(func() error {
		logrus.WithField("addr", *httpAddr).Info("gitcore HTTP server listening")
		return http.ListenAndServe(*httpAddr, httpSrv)
	})
	g.Go(sshSrv.ListenAndServe)

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
