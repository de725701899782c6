package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "region BUCKET",
		Short: "Print the region a bucket lives in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := a.client.BucketRegion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), region)
			return err
		},
	}
}

func newDeleteBucketCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-bucket BUCKET",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteBucket(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted bucket %s\n", args[0])
			return err
		},
	}
}
