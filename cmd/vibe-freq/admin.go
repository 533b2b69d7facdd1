package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List loaded cases",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				cases, err := s.store.Cases(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CASE\tINDIVIDUALS\tVARIANTS\tSVS\tVCF\tSV_VCF")
				for _, c := range cases {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
						c.CaseID, len(c.Individuals), c.NrVariants, c.NrSVVariants, orDot(c.VCFPath), orDot(c.VCFSVPath))
				}
				return tw.Flush()
			})
		},
	}
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

func newWipeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Drop every record of the database",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &usageError{fmt.Errorf("wipe removes all data, pass --yes to confirm")}
			}
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if err := s.store.Wipe(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wiped %s\n", s.Database)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm removal of all data")
	return cmd
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Create the database indexes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if err := s.store.EnsureIndexes(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Indexes ready")
				return nil
			})
		},
	}
}
