package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/annotate"
	"github.com/inodb/vibe-freq/internal/cluster"
	"github.com/inodb/vibe-freq/internal/output"
	"github.com/inodb/vibe-freq/internal/vcf"
)

func newAnnotateCmd() *cobra.Command {
	var (
		outputFile string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "annotate <vcf|->",
		Short: "Annotate a VCF with observed frequencies",
		Long: `Write the input VCF with Obs, Hom, Hem and Frq INFO fields taken from the
database. Records carrying SVTYPE are looked up among the SV clusters.`,
		Example: `  vibe-freq annotate sample.vcf.gz -o sample.freq.vcf
  cat sample.vcf | vibe-freq annotate -`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				return runAnnotate(ctx, s, args[0], cmd.OutOrStdout(), outputFile, workers)
			})
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of lookup workers (0 = all CPUs)")
	return cmd
}

func runAnnotate(ctx context.Context, s *session, input string, stdout io.Writer, outputFile string, workers int) error {
	parser, err := vcf.NewParser(input)
	if err != nil {
		return err
	}
	defer parser.Close()

	snvCases, svCases, err := s.store.CaseCounts(ctx)
	if err != nil {
		return err
	}

	engine := cluster.NewEngine(s.store, s.MaxWindow)
	engine.SetLogger(s.logger)

	ann := annotate.NewAnnotator(s.store, engine)
	ann.SetNormalizeOptions(s.variantOptions().Normalize)
	ann.SetCaseCounts(snvCases, svCases)
	ann.SetWorkers(workers)
	ann.SetLogger(s.logger)

	out, closeOut, err := openOutput(stdout, outputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	writer := output.NewVCFWriter(out, parser.Header())
	if err := writer.WriteHeader(); err != nil {
		return err
	}
	s.logger.Debug("annotating", zap.String("input", input), zap.Int64("snv_cases", snvCases), zap.Int64("sv_cases", svCases))
	return ann.AnnotateAll(ctx, parser, writer)
}

// openOutput returns the file named by path, or stdout when path is empty.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
