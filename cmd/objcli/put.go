package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/objectfs/objclient/internal/storage/s3"
	"github.com/objectfs/objclient/pkg/utils"
)

func newPutCmd(a *app) *cobra.Command {
	var (
		contentType string
		contentMD5  string
		sse         string
		metadata    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "put BUCKET KEY FILE",
		Short: "Upload a file as a single object (FILE may be - for stdin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key, file := args[0], args[1], args[2]

			in := &s3.PutObjectInput{
				Bucket:               bucket,
				Key:                  key,
				ContentType:          contentType,
				ContentMD5:           contentMD5,
				ServerSideEncryption: sse,
				Metadata:             metadata,
			}

			total := int64(-1)
			if file == "-" {
				in.Body = cmd.InOrStdin()
			} else {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				info, err := f.Stat()
				if err != nil {
					return err
				}
				total = info.Size()
				in.Body = f
				in.ContentLength = aws.Int64(total)
			}
			if a.cfg.Global.ShowProgress {
				in.Listener = newBarListener(cmd.ErrOrStderr(), "uploading", total)
			}

			out, err := a.client.PutObject(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printPut(cmd.OutOrStdout(), bucket, key, out)
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "object content type")
	cmd.Flags().StringVar(&contentMD5, "content-md5", "", "base64 MD5 of the body, checked by the service")
	cmd.Flags().StringVar(&sse, "sse", "", `server-side encryption ("AES256" or "aws:kms")`)
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "user metadata as key=value pairs")
	return cmd
}

func printPut(w io.Writer, bucket, key string, out *s3.PutObjectOutput) error {
	verified := "not verified"
	if out.Verified {
		verified = "verified"
	}
	_, err := fmt.Fprintf(w, "uploaded s3://%s/%s (%s, etag %s, %s)\n",
		bucket, key, utils.FormatBytes(out.ContentLength), out.ETag, verified)
	return err
}
