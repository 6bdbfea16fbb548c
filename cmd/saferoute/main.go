// Package main provides the saferoute CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/saferoute/internal/alert"
	"github.com/joss/saferoute/internal/archive"
	"github.com/joss/saferoute/internal/config"
	"github.com/joss/saferoute/internal/logging"
	"github.com/joss/saferoute/internal/metrics"
	"github.com/joss/saferoute/internal/optimize"
	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/render"
	"github.com/joss/saferoute/internal/route"
	"github.com/joss/saferoute/internal/safety"
	"github.com/joss/saferoute/internal/session"
	"github.com/joss/saferoute/internal/trace"
)

var version = "0.1.0"

var pretty bool

// app holds the wired dependency graph for one CLI invocation.
type app struct {
	env      *config.Environment
	store    *session.Store
	tracer   *trace.Tracer
	stats    *metrics.Metrics
	archive  *archive.Archive
	alerts   *alert.Manager
	pipeline *pipeline.Orchestrator
	renderer *render.Renderer
}

// buildApp wires every component explicitly. traceEnabled overrides the
// environment toggle when true.
func buildApp(traceEnabled bool) (*app, error) {
	env := config.Env()
	paths := config.GetPaths()

	store, err := session.NewStore(paths.Sessions)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	arch, err := archive.Open(paths.Data)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	routes := route.NewClient(env.ORSKey, env.ORSBaseURL)
	gatherer := safety.NewGatherer(
		safety.NewOpenWeatherClient(env.OpenWeatherKey, env.OpenWeatherBaseURL),
		safety.NewSunriseSunsetClient(env.SunriseSunsetURL, nil),
		safety.NewStaticCrimeSource(),
		nil,
	)

	tracer := trace.New(traceEnabled || env.TracingEnabled)
	stats := metrics.New()
	alerts := alert.NewManager(paths.Alerts)

	orch := pipeline.New(pipeline.Deps{
		Routes:    routes,
		Safety:    gatherer,
		Optimizer: optimize.New(routes),
		Alerts:    alerts,
		Sessions:  store,
		Tracer:    tracer,
		Logger:    logging.New("pipeline"),
		Metrics:   stats,
		Archive:   arch,
	})

	return &app{
		env:      env,
		store:    store,
		tracer:   tracer,
		stats:    stats,
		archive:  arch,
		alerts:   alerts,
		pipeline: orch,
		renderer: render.New(pretty),
	}, nil
}

func (a *app) close() {
	if a.archive != nil {
		a.archive.Close()
	}
}

// sessionID resolves the active session: flag, then environment, then
// the shared default.
func (a *app) sessionID(flag string) string {
	if flag != "" {
		return flag
	}
	if a.env.SessionID != "" {
		return a.env.SessionID
	}
	return "default"
}

func fatalError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "saferoute",
		Short: "Route safety analysis pipeline",
		Long: `SafeRoute analyzes route safety by combining live routing,
weather, lighting, and time-of-day signals into a single risk score
with recommendations and alternative-route suggestions.

Use 'saferoute analyze <start> <destination>' for a single route.
Use 'saferoute serve' to expose the HTTP API.`,
	}
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", render.IsTerminal(), "Colorized output")

	rootCmd.AddCommand(
		analyzeCmd(),
		batchCmd(),
		sessionCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("saferoute %s\n", version)
		},
	}
}
