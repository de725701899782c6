package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/objectfs/objclient/internal/multipart"
)

func newCompleteCmd(a *app) *cobra.Command {
	var objectSize, partSize string

	cmd := &cobra.Command{
		Use:     "complete BUCKET KEY UPLOAD_ID PART...",
		Short:   "Complete a multipart upload from a NUMBER:ETAG[:SIZE] part list",
		Example: `  objcli complete photos big.iso 2~abc 1:"9b2cf535f27731c974343645a3985328" 2:"6f5902ac237024bdd0c176cb93063dc4"`,
		Args:    cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload := multipart.NewUpload(args[0], args[1], args[2])
			for _, s := range args[3:] {
				p, err := multipart.ParsePart(s)
				if err != nil {
					return err
				}
				if err := upload.MarkPartCompleted(p); err != nil {
					return err
				}
			}

			if objectSize != "" && partSize != "" {
				total, err := humanize.ParseBytes(objectSize)
				if err != nil {
					return fmt.Errorf("--object-size: %w", err)
				}
				chunk, err := humanize.ParseBytes(partSize)
				if err != nil {
					return fmt.Errorf("--part-size: %w", err)
				}
				if err := upload.CheckPartCount(int64(total), int64(chunk)); err != nil {
					return err
				}
			}

			res, err := a.client.CompleteMultipartUpload(cmd.Context(), upload.Request())
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d parts", upload.Len())
			if n := upload.BytesUploaded(); n > 0 {
				summary += ", " + humanize.IBytes(uint64(n))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "completed s3://%s/%s (etag %s, %s)\n", args[0], args[1], res.ETag, summary)
			if err == nil && res.Location != "" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "location: %s\n", res.Location)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&objectSize, "object-size", "", "total object size; with --part-size, checks the part count")
	cmd.Flags().StringVar(&partSize, "part-size", "", "size of every part but the last")
	return cmd
}
