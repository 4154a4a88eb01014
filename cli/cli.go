// Package cli is the command-line surface of the explorer. Every command runs against the
// dataset backend selected in the environment config.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"hermannm.dev/devlog"
	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/mabexplorer/orchestrator"
	"hermannm.dev/wrap"
)

// app holds what every command needs once the root command has read config and connected to the
// backend.
type app struct {
	config   config.Config
	service  dataset.Service
	close    func() error
	registry *prometheus.Registry
	metrics  *orchestrator.Metrics
}

type flags struct {
	dataset     string
	groupBy     string
	metricsAddr string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var flags flags
	app := &app{}

	root := &cobra.Command{
		Use:           "mabexplorer",
		Short:         "Explore the safety profile of monoclonal antibodies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setUp(cmd.Context(), flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.tearDown()
		},
	}

	root.PersistentFlags().StringVarP(
		&flags.dataset, "dataset", "d", dataset.SelectorClinicalTrialsAll.String(),
		"dataset to explore (ctgov_all, label_final, label_bbw, label_wap, fc_mutations)",
	)
	root.PersistentFlags().StringVar(
		&flags.groupBy, "group-by", dataset.GroupByOrganSystem.String(),
		"grouping of adverse-event charts (organ_system, adverse_event_term)",
	)
	root.PersistentFlags().StringVar(
		&flags.metricsAddr, "metrics-addr", "",
		"address to serve Prometheus metrics on, such as ':9090' (disabled if empty)",
	)

	root.AddCommand(
		newTablesCommand(app),
		newVocabularyCommand(app, &flags),
		newQueryCommand(app, &flags),
		newSuggestCommand(app, &flags),
		newCompareCommand(app, &flags),
		newTargetCommand(app, &flags),
		newCrossCommand(app, &flags),
		newStudiesCommand(app, &flags),
		newExportCommand(app, &flags),
		newExploreCommand(app, &flags),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (app *app) setUp(ctx context.Context, flags flags) error {
	cfg, err := config.ReadFromEnv()
	if err != nil {
		return wrap.Error(err, "failed to read config from env")
	}
	app.config = cfg

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logHandler := devlog.NewHandler(os.Stderr, &devlog.Options{Level: logLevel})
	slog.SetDefault(slog.New(logHandler))

	log.Debugf("connecting to %s dataset backend", cfg.Backend)
	app.service, app.close, err = newBackend(cfg)
	if err != nil {
		return wrap.Error(err, "failed to initialize dataset backend")
	}

	app.registry = prometheus.NewRegistry()
	app.metrics = orchestrator.NewMetrics(app.registry)
	if flags.metricsAddr != "" {
		go serveMetrics(ctx, flags.metricsAddr, app.registry)
	}

	return nil
}

func (app *app) tearDown() error {
	if app.close == nil {
		return nil
	}
	return app.close()
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Info("serving metrics", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorCause(err, "metrics server stopped")
	}
}

func (app *app) orchestratorOptions() orchestrator.Options {
	return orchestrator.Options{
		PageSize:   app.config.Explorer.PageSize,
		Dimensions: app.config.Layout.Dimensions,
		MaxSlices:  app.config.Explorer.MaxSlices,
		Metrics:    app.metrics,
	}
}

// Selects the dataset and waits for its vocabulary and first page.
func (app *app) openDataset(flags *flags) (*orchestrator.Orchestrator, error) {
	selector, err := dataset.ParseSelector(flags.dataset)
	if err != nil {
		return nil, err
	}

	explorer := orchestrator.New(app.service, app.orchestratorOptions())
	if err := explorer.SelectDataset(selector); err != nil {
		explorer.Close()
		return nil, err
	}
	explorer.Wait()

	if snapshot := explorer.Snapshot(); snapshot.VocabularyErr != nil {
		explorer.Close()
		return nil, wrap.Error(snapshot.VocabularyErr, "failed to load filter options")
	}
	return explorer, nil
}

func printJSON(output io.Writer, value any) error {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return wrap.Error(err, "failed to encode output")
	}
	return nil
}
