package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/load"
	"github.com/inodb/vibe-freq/internal/model"
)

func newLoadCmd() *cobra.Command {
	var req load.Request

	cmd := &cobra.Command{
		Use:   "load [vcf]",
		Short: "Load the variants of a new case",
		Long: `Load a case into the database. The case needs a small variant VCF, a
structural variant VCF (--sv-vcf), or both. Without --case-id the family id of
the PED file is used.`,
		Example: `  vibe-freq load fam1.vcf.gz --ped fam1.ped
  vibe-freq load --sv-vcf fam1.sv.vcf --case-id fam1`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.VCFPath = args[0]
			}
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				c, err := newLoader(cmd, s).Load(ctx, req)
				if err != nil {
					return err
				}
				printCase(cmd, "Loaded", c)
				return nil
			})
		},
	}

	addCaseFlags(cmd, &req)
	cmd.Flags().StringVarP(&req.PedPath, "ped", "p", "", "PED file describing the family")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var req load.Request

	cmd := &cobra.Command{
		Use:   "update [vcf]",
		Short: "Add the missing variant file to an existing case",
		Long: `Add a small variant VCF or a structural variant VCF to a case that was
loaded without it. The case keeps the individuals it was loaded with.`,
		Example: `  vibe-freq update --case-id fam1 --sv-vcf fam1.sv.vcf`,
		Args:    maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.VCFPath = args[0]
			}
			if req.CaseID == "" {
				return &usageError{fmt.Errorf("--case-id is required")}
			}
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				c, err := newLoader(cmd, s).Update(ctx, req)
				if err != nil {
					return err
				}
				printCase(cmd, "Updated", c)
				return nil
			})
		},
	}

	addCaseFlags(cmd, &req)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <case-id>",
		Short: "Remove a case and every observation it contributed",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if err := newLoader(cmd, s).Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted case %s\n", args[0])
				return nil
			})
		},
	}
}

func addCaseFlags(cmd *cobra.Command, req *load.Request) {
	cmd.Flags().StringVar(&req.SVPath, "sv-vcf", "", "Structural variant VCF")
	cmd.Flags().StringVarP(&req.CaseID, "case-id", "c", "", "Case id")
	cmd.Flags().Bool("skip-profile-check", false, "Do not refuse samples matching a stored profile")
}

func newLoader(cmd *cobra.Command, s *session) *load.Loader {
	opts := s.loadOptions()
	if skip, _ := cmd.Flags().GetBool("skip-profile-check"); skip {
		opts.CheckProfiles = false
	}
	l := load.NewLoader(s.store, opts)
	l.SetLogger(s.logger)
	s.logger.Debug("loader ready",
		zap.Int64("max_window", opts.MaxWindow),
		zap.Int("batch_size", opts.BatchSize),
		zap.Bool("check_profiles", opts.CheckProfiles))
	return l
}

func printCase(cmd *cobra.Command, verb string, c *model.Case) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s case %s: %d variants, %d structural variants, %d individuals\n",
		verb, c.CaseID, c.NrVariants, c.NrSVVariants, len(c.Individuals))
}
