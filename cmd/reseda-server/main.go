// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reseda-net/reseda-server/internal/node"
	"github.com/reseda-net/reseda-server/internal/version"
)

var region string

var rootCmd = &cobra.Command{
	Use:     "reseda-server",
	Short:   "reseda-server runs one WireGuard edge node's control plane",
	Version: version.Info(),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bootstrap the node and serve its control plane",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&region, "region", "", "region name, used to select a configuration override file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	state := node.Bootstrap(ctx, region)

	serverErrors := make(chan error, 1)
	go func() {
		log.Println("reseda-server: listening on :443")
		serverErrors <- state.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("received signal %v, starting graceful shutdown", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := state.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Println("reseda-server: stopped gracefully")
	}

	return nil
}
