package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/objectfs/objclient/internal/storage/s3"
	"github.com/objectfs/objclient/pkg/utils"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		byteRange string
		versionID string
	)

	cmd := &cobra.Command{
		Use:   "get BUCKET KEY [DEST]",
		Short: "Download an object to DEST (a file, a directory, or - for stdout)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key := args[0], args[1]
			dest := "."
			if len(args) == 3 {
				dest = args[2]
			}

			in := &s3.GetObjectInput{Bucket: bucket, Key: key, Range: byteRange, VersionID: versionID}
			var bar *barListener
			if dest != "-" && a.cfg.Global.ShowProgress {
				// the length is known once the response arrives
				bar = newBarListener(cmd.ErrOrStderr(), "downloading", -1)
				in.Listener = bar
			}

			out, err := a.client.GetObject(cmd.Context(), in)
			if err != nil {
				return err
			}
			defer out.Body.Close()

			if dest == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), out.Body)
				return err
			}
			if bar != nil && out.ContentLength >= 0 {
				bar.bar.ChangeMax64(out.ContentLength)
			}

			path, err := localPath(dest, key)
			if err != nil {
				return err
			}
			n, err := writeFile(path, out.Body)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "downloaded s3://%s/%s to %s (%s)\n",
				bucket, key, path, utils.FormatBytes(n))
			return err
		},
	}

	cmd.Flags().StringVar(&byteRange, "range", "", `byte range, e.g. "bytes=0-1023"`)
	cmd.Flags().StringVar(&versionID, "version-id", "", "object version")
	return cmd
}

// localPath resolves DEST: an existing directory receives the key beneath
// it, anything else is taken as the file name.
func localPath(dest, key string) (string, error) {
	info, err := os.Stat(dest)
	if err == nil && info.IsDir() {
		return utils.LocalPathForKey(dest, key)
	}
	return dest, nil
}

// writeFile writes r to path through a temporary file so a failed or
// corrupt download never leaves a partial object behind.
func writeFile(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".objcli-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
