package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/config"
	"vhrscraper/internal/session"

	"github.com/spf13/cobra"
)

// application is everything a command needs, built once before it runs.
type application struct {
	config config.Config
	time   chrono.API
	tel    telemetry.API
	otel   telemetry.Telemetry
	store  session.Store
}

var app *application

var (
	configPath *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:               "vhrscraper",
	Short:             "vhrscraper scrapes vehicle history reports from carfax.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		return app.otel.Shutdown(ctx)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "Path to a config file, defaults to the nearest vhrscraper.json5.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *verbose {
		cfg.Verbose = true
	}
	telemetry.InitSlog(cfg.Verbose)

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	otelTel, err := telemetry.Setup(cmd.Context(), "vhrscraper", cfg.Telemetry)
	if err != nil {
		slog.Warn("failed to setup otel, continuing without exporters", "err", err)
	}

	var tel telemetry.API = telemetry.SlogAPI{}
	otelApi, err := telemetry.NewOtelAPI(tel)
	if err != nil {
		slog.Warn("failed to create otel instruments", "err", err)
	} else {
		tel = otelApi
	}

	app = &application{
		config: cfg,
		time:   clock,
		tel:    tel,
		otel:   otelTel,
		store:  session.NewStore(cfg.TokensFile, cfg.CookiesFile, clock, tel),
	}
	return nil
}

func (a *application) refresher() session.OAuthRefresher {
	return session.NewOAuthRefresher(a.config.TokenEndpoint, a.config.ClientId, a.time, a.tel)
}

// holder is seeded with the stored token even when it has expired, so it
// can still be refreshed.
func (a *application) holder() *session.Holder {
	holder := session.NewHolder(a.refresher(), a.store, a.time, a.tel)
	token, err := a.store.ReadToken()
	if err == nil {
		holder.Set(token)
	}
	return holder
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
