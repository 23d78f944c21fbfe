package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dataplatform/api"
	"dataplatform/config"
	"dataplatform/dashboard"
	"dataplatform/services"
	"dataplatform/storage"
	"dataplatform/utils"
)

func main() {
	logger := utils.NewLogger()

	rootCmd := &cobra.Command{
		Use:          "dataplatform",
		Short:        "Data platform MVP: item CRUD API, warehouse ingestion and dashboard tools",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd(logger), configCmd(logger), uploadCmd(logger), queryCmd(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func serveCmd(logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load(logger)
			logger.Info("=== %s starting ===", cfg.BackendService)
			logger.Info("Config: project %s | port: %d | env: %s | credentials: %s",
				cfg.ProjectID, cfg.Port, cfg.Environment(), cfg.CredentialsMode)
			if err := exportCredentials(cfg); err != nil {
				logger.Warn("Falling back to default credentials: %v", err)
			}

			items, err := storage.NewSQLiteItemStore(cfg.ItemStorePath)
			if err != nil {
				logger.Error("Failed to open item store: %v", err)
				return err
			}
			defer items.Close()

			sink, err := storage.NewPostgresSink(ctx, cfg.DSN(), logger)
			if err != nil {
				logger.Error("Failed to open warehouse: %v", err)
				return err
			}
			defer sink.Close()

			ingest := services.NewIngestService(sink, cfg.AnalyticsTable(), logger)
			return api.NewServer(cfg, items, ingest, logger).Start(ctx)
		},
	}
}

func configCmd(logger *utils.Logger) *cobra.Command {
	var asJSON, asYAML bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(logger)
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case asYAML:
				data, err := cfg.Summary()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			default:
				dashboard.RenderConfig(out, cfg)
				return nil
			}
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML")
	return cmd
}

func uploadCmd(logger *utils.Logger) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Send a CSV file to the backend ingestion endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(logger)
			records, err := dashboard.ReadCSVFile(args[0])
			if err != nil {
				return err
			}

			logger.Info("[dashboard] Sending %d records to %s", len(records), cfg.BackendURL)
			client := dashboard.NewClient(cfg.BackendURL, timeout)
			res, err := client.Analyze(cmd.Context(), records)
			if err != nil {
				dashboard.RenderError(cmd.ErrOrStderr(), err)
				return err
			}
			dashboard.RenderIngestion(cmd.OutOrStdout(), args[0], res)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits for the load to finish)")
	return cmd
}

func queryCmd(logger *utils.Logger) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run read-only SQL against the warehouse (defaults to a preview of the ingestion table)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(logger)
			if err := exportCredentials(cfg); err != nil {
				logger.Warn("Falling back to default credentials: %v", err)
			}

			sink, err := storage.NewPostgresSink(cmd.Context(), cfg.DSN(), logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			var sql string
			if len(args) == 1 {
				sql = args[0]
			}
			res, err := dashboard.NewWorkspace(sink, cfg.AnalyticsTable()).Run(cmd.Context(), sql, true)
			if err != nil {
				dashboard.RenderError(cmd.ErrOrStderr(), fmt.Errorf("warehouse: %w", err))
				return err
			}
			dashboard.RenderResult(cmd.OutOrStdout(), res)

			if outPath == "" {
				return nil
			}
			w, err := storage.NewCSVWriter(outPath)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.WriteResult(res); err != nil {
				return err
			}
			logger.Info("[dashboard] Result saved to %s", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the result to this CSV file")
	return cmd
}

// exportCredentials hands a local credential file to the client libraries
// the same way the managed SDKs look for it.
func exportCredentials(cfg *config.Config) error {
	if cfg.CredentialsMode != config.CredentialsFromFile {
		return nil
	}
	if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.CredentialsFile); err != nil {
		return fmt.Errorf("export credentials %s: %w", cfg.CredentialsFile, err)
	}
	return nil
}
