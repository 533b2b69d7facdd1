package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-freq/internal/model"
	"github.com/inodb/vibe-freq/internal/profile"
	"github.com/inodb/vibe-freq/internal/vcf"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage genotype profiles used for duplicate sample detection",
	}

	cmd.AddCommand(newProfileLoadPanelCmd())
	cmd.AddCommand(newProfileUpdateCmd())
	cmd.AddCommand(newProfileCheckCmd())
	cmd.AddCommand(newProfileStatsCmd())
	return cmd
}

func newProfileLoadPanelCmd() *cobra.Command {
	var minMAF float64

	cmd := &cobra.Command{
		Use:   "load-panel <vcf>",
		Short: "Replace the profile panel with the common SNVs of a VCF",
		Long: `Replace the profile panel with the biallelic SNVs of a sites VCF whose minor
allele frequency, taken from INFO AF, is at least --min-maf. Stored profiles are
not rebuilt; run "profile update" afterwards.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				parser, err := vcf.NewParser(args[0])
				if err != nil {
					return err
				}
				defer parser.Close()

				n, err := newMatcher(s).LoadPanel(ctx, parser, minMAF)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d profile sites\n", n)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&minMAF, "min-maf", profile.DefaultMinMAF, "Minimum minor allele frequency of a panel site")
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Rebuild the profiles of every stored case",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				n, err := newMatcher(s).UpdateProfiles(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated profiles of %d cases\n", n)
				return nil
			})
		},
	}
}

func newProfileCheckCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "check <vcf>",
		Short: "Report stored samples similar to the samples of a VCF",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if !cmd.Flags().Changed("threshold") {
					threshold = s.SoftThreshold
				}
				return runProfileCheck(ctx, cmd, s, args[0], threshold)
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold (default profile.soft_threshold)")
	return cmd
}

func runProfileCheck(ctx context.Context, cmd *cobra.Command, s *session, path string, threshold float64) error {
	m := newMatcher(s)
	panel, err := m.Panel(ctx)
	if err != nil {
		return err
	}
	if panel.Len() == 0 {
		return fmt.Errorf("no profile panel loaded")
	}

	sum, err := vcf.CheckFile(path)
	if err != nil {
		return err
	}
	inds := make([]model.Individual, len(sum.SampleNames))
	for i, name := range sum.SampleNames {
		inds[i] = model.Individual{IndID: name, IndIndex: i}
	}

	profiles, err := panel.BuildFile(path, inds)
	if err != nil {
		return err
	}
	match, err := m.CheckDuplicates(ctx, profiles, threshold)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if match == nil {
		fmt.Fprintf(out, "No stored sample with similarity >= %.2f\n", threshold)
		return nil
	}
	fmt.Fprintf(out, "%s matches %s in case %s (similarity %.3f)\n",
		match.Candidate, match.IndID, match.CaseID, match.Similarity)
	return nil
}

func newProfileStatsCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize pairwise similarity of stored profiles",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if !cmd.Flags().Changed("threshold") {
					threshold = s.SoftThreshold
				}
				sum, err := newMatcher(s).Stats(ctx, threshold)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "profiles\t%d\n", sum.Profiles)
				fmt.Fprintf(out, "pairs\t%d\n", sum.Pairs)
				fmt.Fprintf(out, "mean\t%.4f\n", sum.Mean)
				fmt.Fprintf(out, "stddev\t%.4f\n", sum.StdDev)
				fmt.Fprintf(out, "max\t%.4f\n", sum.Max)
				fmt.Fprintf(out, "above_%.2f\t%d\n", threshold, sum.AboveThreshold)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold (default profile.soft_threshold)")
	return cmd
}

func newMatcher(s *session) *profile.Matcher {
	m := profile.NewMatcher(s.store)
	m.SetLogger(s.logger)
	return m
}
