package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-draw/internal/config"
	"github.com/joeblew999/plat-draw/internal/db"
	"github.com/joeblew999/plat-draw/internal/listing"
	"github.com/joeblew999/plat-draw/internal/logging"
	"github.com/joeblew999/plat-draw/internal/server"
)

// Options defines all CLI flags and env vars for the draw server.
// Flags: --host, --port, --data-dir, --config, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for saved areas and the listing database" default:".data"`
	Config    string `doc:"Drawing config file (draw.yaml is picked up from . or ./configs when empty)"`
	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: text or json" default:"text"`
}

func newServer(opts *Options) (*server.Server, *slog.Logger, error) {
	log := logging.Setup(opts.LogLevel, opts.LogFormat)
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	srv, err := server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		Draw:    cfg,
		Logger:  log,
	})
	return srv, log, err
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv, log, err := newServer(opts)
			if err != nil {
				fatal("Startup failed", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-draw API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "draw"
	cli.Root().Short = "Freehand search-area drawing server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DataDir = ""
			srv, _, err := newServer(opts)
			if err != nil {
				fatal("Error creating server", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// import subcommand: load a listing feed into the database
	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a JSON array of v1/v2 listing records",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := logging.Setup(opts.LogLevel, opts.LogFormat)
			data, err := os.ReadFile(args[0])
			if err != nil {
				fatal("Error reading feed", err)
			}
			recs, err := listing.ParseAll(data)
			if err != nil {
				fatal("Error parsing feed", err)
			}

			conn, err := db.Open(db.Config{DataDir: opts.DataDir, DBName: "draw"})
			if err != nil {
				fatal("Error opening database", err)
			}
			defer conn.Close()

			ctx := context.Background()
			store, err := listing.NewStore(ctx, conn)
			if err != nil {
				fatal("Error preparing listings", err)
			}
			n, err := store.Upsert(ctx, recs)
			if err != nil {
				fatal("Error importing listings", err)
			}
			total, _ := store.Count(ctx)
			log.Info("listings imported", "file", args[0], "imported", n, "total", total)
		}),
	}
	cli.Root().AddCommand(importCmd)

	cli.Run()
}
