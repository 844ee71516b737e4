package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

func newGenerateCommand(e *env) *cobra.Command {
	var date, from, to string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create the day's task executions",
		Long: `Create NOT_STARTED executions for every definition due on a date.
Defaults to today in the configured timezone. Running it again for the
same date creates nothing new.`,
		Example: `  chorely generate
  chorely generate --date 2024-03-01
  chorely generate --from 2024-03-01 --to 2024-03-07`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			gen := chore.NewGenerator(store.NewTaskStore(db), store.NewExecutionStore(db))
			ctx := cmd.Context()

			var results []*chore.GenerateResult
			switch {
			case from != "" || to != "":
				if from == "" || to == "" || date != "" {
					return errors.New("--from and --to must be used together, without --date")
				}
				start, err := model.ParseDate(from)
				if err != nil {
					return err
				}
				end, err := model.ParseDate(to)
				if err != nil {
					return err
				}
				results, err = gen.GenerateRange(ctx, start, end)
				if err != nil {
					return err
				}
			default:
				day := clock.Today(clock.System{}, e.loc)
				if date != "" {
					if day, err = model.ParseDate(date); err != nil {
						return err
					}
				}
				res, err := gen.Generate(ctx, day)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			for _, res := range results {
				e.logger.Info("generated executions", "date", res.TargetDate.String(), "count", res.GeneratedCount, "failures", len(res.Failures))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("write results: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to generate (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&from, "from", "", "first date of a range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date of a range, inclusive (YYYY-MM-DD)")
	return cmd
}
