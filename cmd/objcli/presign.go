package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/objectfs/objclient/internal/signing"
	"github.com/objectfs/objclient/internal/storage/s3"
)

func newPresignCmd(a *app) *cobra.Command {
	var (
		method  string
		expires time.Duration
	)

	cmd := &cobra.Command{
		Use:   "presign BUCKET KEY",
		Short: "Print a presigned URL for an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.PresignURL(cmd.Context(), &s3.PresignInput{
				Method:  strings.ToUpper(method),
				Bucket:  args[0],
				Key:     args[1],
				Expires: expires,
			})
			if err != nil {
				return err
			}
			parsed, err := url.Parse(u)
			if err != nil {
				return err
			}
			scheme := signing.PresignedScheme(parsed)
			a.logger.Debug("presigned url", "url", u, "scheme", scheme.String(), "expires", expires)
			fmt.Fprintf(cmd.ErrOrStderr(), "signer: %s\n", scheme)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	}

	cmd.Flags().StringVar(&method, "method", http.MethodGet, "HTTP method the URL grants")
	cmd.Flags().DurationVar(&expires, "expires", 15*time.Minute, "URL lifetime")
	return cmd
}
