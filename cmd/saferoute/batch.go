package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/route"
)

// batchFile is the on-disk shape consumed by the batch command.
type batchFile struct {
	Routes []struct {
		Start       string `json:"start"`
		Destination string `json:"destination"`
	} `json:"routes"`
	RouteType string `json:"route_type"`
}

func batchCmd() *cobra.Command {
	var routeType string
	var sessionFlag string

	cmd := &cobra.Command{
		Use:   "batch <file.json>",
		Short: "Analyze several routes concurrently",
		Long: `Analyze every route in a JSON file. The file holds:

  {"routes": [{"start": "lat,lon", "destination": "lat,lon"}, ...],
   "route_type": "driving-car"}

Outcomes are printed in file order; one failing route never affects
the others.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fatalError(err)
			}
			var file batchFile
			if err := json.Unmarshal(data, &file); err != nil {
				fatalError(fmt.Errorf("parse %s: %w", args[0], err))
			}
			if len(file.Routes) == 0 {
				fatalError(fmt.Errorf("%s contains no routes", args[0]))
			}

			profile := routeType
			if profile == "" {
				profile = file.RouteType
			}
			if profile == "" {
				profile = "driving-car"
			}

			a, err := buildApp(false)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			reqs := make([]pipeline.Request, 0, len(file.Routes))
			for i, item := range file.Routes {
				start, err := route.ParsePoint(item.Start)
				if err != nil {
					fatalError(fmt.Errorf("route %d: %w", i, err))
				}
				dest, err := route.ParsePoint(item.Destination)
				if err != nil {
					fatalError(fmt.Errorf("route %d: %w", i, err))
				}
				reqs = append(reqs, pipeline.Request{
					SessionID:   a.sessionID(sessionFlag),
					Start:       start,
					Destination: dest,
					Profile:     profile,
				})
			}

			results := a.pipeline.AnalyzeBatch(context.Background(), reqs)
			for i, res := range results {
				fmt.Printf("--- route %d ---\n", i)
				fmt.Print(a.renderer.Result(res))
			}
		},
	}
	cmd.Flags().StringVarP(&routeType, "type", "t", "", "Route profile override")
	cmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Session id")
	return cmd
}
