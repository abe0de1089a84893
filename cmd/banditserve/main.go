// Command banditserve runs the bandit experimentation HTTP server: it loads
// configuration, opens the on-disk StateStore, reloads any persisted
// experiments into the Repository, and serves spec.md §6's HTTP surface
// until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banditserve/accountant"
	"banditserve/config"
	"banditserve/httpapi"
	"banditserve/repository"
	"banditserve/statestore"
)

var configPath *string

// TODO: per 12-factor rules this should also accept BANDITSERVE_* env
// overrides; KISS for now.
func init() {
	configPath = flag.String("config", "", "path to a YAML config file; if empty, built-in defaults are used")
	flag.Parse()
}

func loadConfig() (config.Config, error) {
	if *configPath == "" {
		return config.Defaults(), nil
	}
	return config.FromYaml(*configPath)
}

func runApp() (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(cfg.StateDirectory, 0o755); err != nil {
		return err
	}
	store, err := statestore.Open(cfg.StateDirectory)
	if err != nil {
		return err
	}

	var acct accountant.Accountant
	if cfg.AccountantEnabled {
		acct = accountant.NewLogging(256)
	} else {
		acct = accountant.NoOp{}
	}

	repo := repository.New(store, acct, repository.Config{
		CheckpointInterval: time.Duration(cfg.CheckpointIntervalMS) * time.Millisecond,
		MailboxCapacity:    cfg.MailboxCapacity,
		RestartMaxBurst:    cfg.RestartMaxBurst,
		RestartBackoff:     time.Duration(cfg.RestartBackoffMS) * time.Millisecond,
	})
	repo.Startup()

	router := httpapi.New(repo, acct, cfg.DefaultPolicy)
	srv := &http.Server{Addr: cfg.BindAddress, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		if e := srv.ListenAndServe(); e != nil && e != http.ErrServerClosed {
			serveErr <- e
		}
	}()
	fmt.Printf("banditserve listening on %s (state_directory=%s)\n", cfg.BindAddress, cfg.StateDirectory)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err = <-serveErr:
		return err
	case <-sig:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	repo.Shutdown(5 * time.Second)
	return nil
}

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
