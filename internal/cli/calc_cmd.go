package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newDistributeCmd(app *App) *cobra.Command {
	var (
		total string
		days  []string
	)

	cmd := &cobra.Command{
		Use:     "distribute",
		Short:   "Distribute converted overtime hours across days",
		Example: "  benefitsctl distribute --total 2 --day 2024-03-04=3 --day 2024-03-06=1",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := decimal.NewFromString(total)
			if err != nil {
				return fmt.Errorf("invalid --total %q: %w", total, err)
			}

			daily := make(map[time.Time]decimal.Decimal, len(days))
			for _, d := range days {
				date, hours, err := parseDay(d)
				if err != nil {
					return err
				}
				daily[date] = daily[date].Add(hours)
			}

			entries := benefitService.Distribute(daily, t)
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"converted":    benefitService.SumConverted(entries),
				"distribution": entries,
			})
		},
	}

	cmd.Flags().StringVar(&total, "total", "0", "Hours to convert")
	cmd.Flags().StringArrayVar(&days, "day", nil, "Overtime of one day as YYYY-MM-DD=hours (repeatable)")
	return cmd
}

func parseDay(s string) (time.Time, decimal.Decimal, error) {
	date, hours, ok := strings.Cut(s, "=")
	if !ok {
		return time.Time{}, decimal.Zero, fmt.Errorf("invalid --day %q: want YYYY-MM-DD=hours", s)
	}
	d, err := benefit.ParseDate(date)
	if err != nil {
		return time.Time{}, decimal.Zero, err
	}
	h, err := decimal.NewFromString(hours)
	if err != nil {
		return time.Time{}, decimal.Zero, fmt.Errorf("invalid hours in --day %q: %w", s, err)
	}
	return d, h, nil
}

func newAllocateCmd(app *App) *cobra.Command {
	var (
		withMeal    int
		withoutMeal int
		amount      string
		capHigh     string
		capLow      string
	)

	cmd := &cobra.Command{
		Use:     "allocate",
		Short:   "Allocate a reimbursable amount over eligible days",
		Example: "  benefitsctl allocate --with-meal 2 --without-meal 2 --amount 183.46",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}

			caps := app.Caps
			if capHigh != "" {
				if caps.High, err = decimal.NewFromString(capHigh); err != nil {
					return fmt.Errorf("invalid --cap-high %q: %w", capHigh, err)
				}
			}
			if capLow != "" {
				if caps.Low, err = decimal.NewFromString(capLow); err != nil {
					return fmt.Errorf("invalid --cap-low %q: %w", capLow, err)
				}
			}
			if !caps.Low.IsPositive() || !caps.Low.LessThan(caps.High) {
				return benefit.ErrInvalidCaps
			}

			return writeJSON(cmd.OutOrStdout(), benefitService.Allocate(withMeal, withoutMeal, r, caps))
		},
	}

	cmd.Flags().IntVar(&withMeal, "with-meal", 0, "Eligible days that already received a meal benefit")
	cmd.Flags().IntVar(&withoutMeal, "without-meal", 0, "Eligible days without a meal benefit")
	cmd.Flags().StringVar(&amount, "amount", "0", "Reimbursable amount")
	cmd.Flags().StringVar(&capHigh, "cap-high", "", "Per-day ceiling for days without a meal benefit")
	cmd.Flags().StringVar(&capLow, "cap-low", "", "Per-day ceiling for days with a meal benefit")
	return cmd
}
