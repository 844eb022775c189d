package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/notebookgrader/grader-client/config"
	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/sandbox"
)

const Version = "0.1.0"

func main() {
	fs := pflag.NewFlagSet("grader-sandbox", pflag.ExitOnError)
	config.RegisterCommonFlags(fs)
	config.RegisterSandboxFlags(fs)
	version := fs.Bool("version", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *version {
		fmt.Printf("grader-sandbox version %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(fs, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logger.Stderr(cfg.Debug)

	s := sandbox.New(sandbox.Options{
		Token:  cfg.Token,
		Secret: []byte(cfg.SandboxSecret),
		Delay:  cfg.SandboxDelay,
		Log:    log,
		Debug:  cfg.Debug,
	})
	if cfg.Token == "" {
		log.Warn("no token set: every API call is accepted")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("sandbox listening", cfg.SandboxAddr, Version)
		errChan <- s.Start(cfg.SandboxAddr)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("sandbox stopped", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Info("shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			log.Error("shutdown failed", err)
		}
	}
}
