package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/spf13/cobra"
)

// Engine is the slice of the aggregation engine the CLI drives.
type Engine interface {
	Snapshot(ctx context.Context, companyID string, month benefit.Month) (*benefitService.Snapshot, error)
	Compute(ctx context.Context, snap *benefitService.Snapshot) (*benefit.MonthlyAggregate, error)
}

// App holds what the commands need. OpenEngine is only called by commands
// that read company data, so the pure calculators work offline.
type App struct {
	OpenEngine func(ctx context.Context) (Engine, func(), error)
	Caps       benefit.Caps
	Workers    int
	Out        io.Writer
}

// NewRootCmd creates the top-level "benefitsctl" command.
func NewRootCmd(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}

	root := &cobra.Command{
		Use:           "benefitsctl",
		Short:         "Compute and inspect monthly employee benefits",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.Out)

	root.AddCommand(
		newComputeCmd(app),
		newDistributeCmd(app),
		newAllocateCmd(app),
	)

	return root
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
