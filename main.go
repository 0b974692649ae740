// go_research: iterative web research over MCP and REST.
//
// Each run generates a search query, aggregates the top results, reflects on
// what is missing, searches again, and answers with numbered citations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_research/internal/engine"
	"github.com/anatolykoptev/go_research/internal/research"
	"github.com/anatolykoptev/go_research/internal/researchserver"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "go_research",
		Short:         "Iterative web research server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (env RESEARCH_CONFIG)")
	root.AddCommand(serveCmd(&cfgPath), askCmd(&cfgPath), versionCmd())
	return root
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server and the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *cfgPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := researchserver.Instrument(a.loop)

	if cfg.HTTPAddr != "" {
		e := researchserver.NewHTTPServer(runner, researchserver.HTTPOptions{AllowedOrigins: cfg.CORSOrigins})
		go func() {
			slog.Info("rest api listening", slog.String("addr", cfg.HTTPAddr))
			if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("rest api failed", slog.Any("error", err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = e.Shutdown(sctx)
		}()
	}

	slog.Info("starting go_research", slog.String("port", cfg.MCPPort), slog.String("version", version))
	server := mcp.NewServer(&mcp.Implementation{Name: "go_research", Version: version}, nil)
	researchserver.RegisterTools(server, runner)

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_research",
		Version:      version,
		Port:         cfg.MCPPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		return err
	}
	return nil
}

func askCmd(cfgPath *string) *cobra.Command {
	var iterations, retries int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Run one research question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("iterations") {
				iterations = cfg.Research.MaxIterations
			}
			if !cmd.Flags().Changed("retries") {
				retries = cfg.Research.MaxRetry
			}

			var opts []research.Option
			if verbose {
				errOut := cmd.ErrOrStderr()
				opts = append(opts, research.WithObserver(func(tr research.Transition) {
					fmt.Fprintf(errOut, "[%d] %s -> %s %s\n", tr.Iteration, tr.From, tr.To, tr.Query)
				}))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.loop.Run(ctx, research.Question{
				Text:          strings.Join(args, " "),
				MaxIterations: iterations,
				MaxRetry:      retries,
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				return err
			}
			out := res.Answer
			if res.Failed() {
				out = res.Message
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 1, "search-reflect rounds")
	cmd.Flags().IntVarP(&retries, "retries", "r", 3, "extra searches when a query returns nothing")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print state transitions to stderr")
	return cmd
}
