package cli

import (
	"fmt"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/spf13/cobra"
)

func newComputeCmd(app *App) *cobra.Command {
	var (
		companyID string
		month     string
		write     bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute one company month and print the aggregate",
		Long: "Compute one company month from the database and print the aggregate as JSON.\n" +
			"Without --write nothing is persisted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := benefit.ParseMonth(month)
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			engine, closeFn, err := app.OpenEngine(ctx)
			if err != nil {
				return fmt.Errorf("opening engine: %w", err)
			}
			defer closeFn()

			snap, err := engine.Snapshot(ctx, companyID, m)
			if err != nil {
				return err
			}

			var agg *benefit.MonthlyAggregate
			if write {
				agg, err = engine.Compute(ctx, snap)
				if err != nil {
					return err
				}
			} else {
				agg, _ = benefitService.ComputeMonth(snap, app.Caps, app.Workers)
				if agg.SourceHash, err = snap.Hash(); err != nil {
					return err
				}
			}

			if err := writeJSON(cmd.OutOrStdout(), agg); err != nil {
				return err
			}
			if len(agg.Failures) > 0 {
				return fmt.Errorf("%d employee(s) failed: %w", len(agg.Failures), benefitService.FailureErrors(agg))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "Company ID")
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM")
	cmd.Flags().BoolVar(&write, "write", false, "Persist overtime conversion totals")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
