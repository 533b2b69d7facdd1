package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/output"
)

func newExportCmd() *cobra.Command {
	var (
		outputFile string
		sv         bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database as a sites-only VCF",
		Long: `Write every small variant, or with --sv every structural variant cluster,
in chromosome order with its observation counts.`,
		Example: `  vibe-freq export -o freq.vcf
  vibe-freq export --sv -o freq.sv.vcf`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				snvCases, svCases, err := s.store.CaseCounts(ctx)
				if err != nil {
					return err
				}

				out, closeOut, err := openOutput(cmd.OutOrStdout(), outputFile)
				if err != nil {
					return err
				}
				defer closeOut()

				ew := output.NewExportWriter(out)
				ew.SetCaseCounts(snvCases, svCases)
				if err := ew.WriteHeader(s.Build, sv); err != nil {
					return err
				}

				var n int
				if sv {
					n, err = output.ExportClusters(ctx, s.store, ew)
				} else {
					n, err = output.ExportVariants(ctx, s.store, ew)
				}
				if err != nil {
					return err
				}
				s.logger.Info("export finished", zap.Int("records", n), zap.Bool("sv", sv))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&sv, "sv", false, "Export structural variant clusters")
	return cmd
}
