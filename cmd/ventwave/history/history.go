package history

import (
	"fmt"
	"text/tabwriter"
	"time"

	"ventwave/cmd/ventwave/app"
	"ventwave/internal/db"
	hist "ventwave/internal/history"

	"github.com/spf13/cobra"
)

var limit int

var Cmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		if !cfg.DB.Enabled {
			return fmt.Errorf("history is disabled (db.enabled = false)")
		}

		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		analyses, err := hist.NewStore(database).Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tMODEL\tIMAGES\tTOKENS\tPROMPT")
		for _, a := range analyses {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				a.ID,
				a.CreatedAt.Local().Format(time.DateTime),
				a.Model,
				a.ImageCount,
				a.InputTokens+a.OutputTokens,
				preview(a.Prompt, 40),
			)
		}
		return tw.Flush()
	},
}

func init() {
	Cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of analyses to show")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
