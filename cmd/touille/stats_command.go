package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yambati03/touille/internal/infrastructure/persistence/postgres"
)

func newStatsCommand(configFlag *string) *cobra.Command {
	var topUsers int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show deployment statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.NewPgxPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			stats := postgres.NewStatsRepository(pool)

			recipes, err := stats.CountRecipes(ctx)
			if err != nil {
				return err
			}
			users, err := stats.CountUsers(ctx)
			if err != nil {
				return err
			}
			lastWeek, err := stats.RecentRecipes(ctx, time.Now().AddDate(0, 0, -7))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recipes:            %d\n", recipes)
			fmt.Fprintf(out, "Users:              %d\n", users)
			fmt.Fprintf(out, "Recipes last 7d:    %d\n", lastWeek)

			if topUsers > 0 {
				rows, err := stats.RecipesPerUser(ctx, topUsers)
				if err != nil {
					return err
				}
				if len(rows) > 0 {
					fmt.Fprintln(out)
					w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "USER\tRECIPES")
					for _, row := range rows {
						fmt.Fprintf(w, "%s\t%d\n", row.UserID, row.Count)
					}
					w.Flush()
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&topUsers, "top", 10, "How many users to list by recipe count, 0 to skip")

	return cmd
}
