// Command directory-mcp serves read-only corporate directory lookups over
// the Model Context Protocol.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpatlas/directory-mcp"
	"github.com/corpatlas/directory-mcp/internal/mcpserver"
)

var (
	configPath string
	presetName string
	httpAddr   string
)

func main() {
	root := &cobra.Command{
		Use:           "directory-mcp",
		Short:         "MCP server for corporate directory lookups over LDAP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the JSON configuration file (falls back to $"+directory.ConfigPathEnv+")")
	root.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "named configuration preset (redhat, openldap)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio, or HTTP with --http",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run a one-shot connection test against the directory",
		RunE:  runCheck,
	}

	root.AddCommand(serveCmd, checkCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and wires the directory service. Logs go to
// stderr so the stdio MCP transport keeps stdout to itself.
func setup() (*directory.Service, *slog.Logger, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := directory.LoadConfig(configPath, presetName, bootstrap)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}))
	cfg.Logger = logger

	svc, err := directory.NewService(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return svc, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, logger, err := setup()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcpserver.NewServer(svc, logger)
	if httpAddr != "" {
		return server.RunHTTP(ctx, httpAddr)
	}
	return server.Run(ctx)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup()
	if err != nil {
		return err
	}
	defer svc.Close()

	result := svc.TestConnection(cmd.Context())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("connection test failed after %d attempts", result.Attempts)
	}
	return nil
}
