package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/observability"
	"github.com/xkilldash9x/expectkit/pkg/coverage"
)

func newCovergateCommand() *cobra.Command {
	var (
		profile string
		minimum int
		perFile bool
	)

	cmd := &cobra.Command{
		Use:   "covergate",
		Short: "Fail when a coverage profile is below the minimum",
		Long: `Reads a profile written by go test -coverprofile and fails when total
statement coverage is below --min, or harness.minimum_coverage when --min is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min") {
				minimum = cfg.Harness.MinimumCoverage
			}

			collaborator := coverage.NewProfileCollaborator(profile)
			gate, err := coverage.Setup(collaborator, coverage.WithMinimum(minimum))
			if err != nil {
				return err
			}
			report, err := collaborator.Report()
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report, gate.Minimum(), perFile); err != nil {
				return err
			}

			observability.GetLogger().Debug("Coverage profile checked",
				zap.String("profile", profile),
				zap.Float64("percent", report.Total.Percent()),
				zap.Int("minimum", gate.Minimum()))
			return gate.Check()
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "cover.out", "coverage profile written by go test -coverprofile")
	cmd.Flags().IntVar(&minimum, "min", coverage.DefaultMinimum, "minimum total statement coverage, 0 to 100")
	cmd.Flags().BoolVar(&perFile, "files", false, "print coverage for every file")
	return cmd
}

func printReport(w io.Writer, r coverage.Report, minimum int, perFile bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if perFile {
		for _, f := range r.Files {
			fmt.Fprintf(tw, "%s\t%d/%d\t%.1f%%\n", f.File, f.Covered, f.Statements, f.Percent())
		}
	}
	fmt.Fprintf(tw, "total\t%d/%d\t%.1f%%\t(minimum %d%%)\n", r.Total.Covered, r.Total.Statements, r.Total.Percent(), minimum)
	return tw.Flush()
}
