package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	var sessionFlag string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session history and preferences",
	}
	cmd.PersistentFlags().StringVarP(&sessionFlag, "session", "s", "", "Session id")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show analyzed routes for a session",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := buildApp(false)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			id := a.sessionID(sessionFlag)
			fmt.Print(a.renderer.History(id, a.store.History(id), a.store.Statistics(id)))
		},
	}

	prefsCmd := &cobra.Command{
		Use:   "prefs [key=value ...]",
		Short: "Show or update session preferences",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := buildApp(false)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			id := a.sessionID(sessionFlag)
			if len(args) > 0 {
				partial := make(map[string]any, len(args))
				for _, arg := range args {
					key, value, ok := splitKeyValue(arg)
					if !ok {
						fatalError(fmt.Errorf("invalid preference %q: want key=value", arg))
					}
					partial[key] = value
				}
				if err := a.store.MergePreferences(id, partial); err != nil {
					fatalError(err)
				}
			}

			data, _ := json.MarshalIndent(a.store.Preferences(id), "", "  ")
			fmt.Println(string(data))
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session statistics and archive totals",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := buildApp(false)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			id := a.sessionID(sessionFlag)
			stats := a.store.Statistics(id)
			fmt.Printf("Session %s\n", id)
			fmt.Printf("  Routes analyzed:  %d\n", stats.TotalRoutes)
			fmt.Printf("  Average risk:     %.1f\n", stats.AverageRiskScore)
			fmt.Printf("  High-risk routes: %d\n", stats.HighRiskRoutes)

			totals, err := a.archive.TotalsFor(context.Background(), id)
			if err != nil {
				fatalError(err)
			}
			fmt.Printf("  Archived:         %d (%d hazardous, %d fallbacks)\n",
				totals.Analyses, totals.Hazardous, totals.Fallbacks)
		},
	}

	cmd.AddCommand(historyCmd, prefsCmd, statsCmd)
	return cmd
}

func splitKeyValue(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i == 0 || i == len(s)-1 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
