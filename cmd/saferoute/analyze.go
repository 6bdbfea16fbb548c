package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/route"
)

func analyzeCmd() *cobra.Command {
	var routeType string
	var sessionFlag string
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "analyze <start> <destination>",
		Short: "Analyze the safety of one route",
		Long: `Analyze a route between two "lat,lon" coordinates.

Example:
  saferoute analyze "40.7128,-74.0060" "40.7614,-73.9776" --type foot-walking`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			start, err := route.ParsePoint(args[0])
			if err != nil {
				fatalError(err)
			}
			dest, err := route.ParsePoint(args[1])
			if err != nil {
				fatalError(err)
			}

			a, err := buildApp(showTrace)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			res := a.pipeline.Analyze(context.Background(), pipeline.Request{
				SessionID:   a.sessionID(sessionFlag),
				Start:       start,
				Destination: dest,
				Profile:     routeType,
			})
			fmt.Print(a.renderer.Result(res))

			if showTrace {
				fmt.Print(a.renderer.TraceStats(a.tracer.Stats()))
			}
		},
	}
	cmd.Flags().StringVarP(&routeType, "type", "t", "driving-car", "Route profile (driving-car|foot-walking|cycling-regular)")
	cmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Session id (default from SAFEROUTE_SESSION_ID)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print per-operation timing after the analysis")
	return cmd
}
