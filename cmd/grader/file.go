package main

import (
	"bufio"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notebookgrader/grader-client/views"
)

func (cli *commandLine) fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage the file attached to a homework",
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Describe the attached file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := views.NewFileUpload(cli.env, args[0])
			if err := u.Load(cmd.Context()); err != nil {
				return err
			}
			info := u.FileInfo(time.Now())
			if info == "" {
				info = "No file."
			}
			fmt.Fprintln(cli.out, info)
			return nil
		},
	}

	upload := &cobra.Command{
		Use:   "upload ID PATH",
		Short: "Attach a file, replacing the current one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return errors.Wrap(err, "opening file")
			}
			defer f.Close()
			fi, err := f.Stat()
			if err != nil {
				return errors.Wrap(err, "reading file")
			}

			mimeType := mime.TypeByExtension(filepath.Ext(args[1]))
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}

			u := views.NewFileUpload(cli.env, args[0])
			if err := u.Load(cmd.Context()); err != nil {
				return err
			}
			if err := u.Upload(cmd.Context(), filepath.Base(args[1]), mimeType, f, fi.Size()); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, u.FileInfo(time.Now()))
			return nil
		},
	}

	download := &cobra.Command{
		Use:   "download ID [PATH]",
		Short: "Save the attached file, under its own name by default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := views.NewFileUpload(cli.env, args[0])
			if err := u.Load(cmd.Context()); err != nil {
				return err
			}
			path := filepath.Base(u.State().FileName)
			if len(args) == 2 {
				path = args[1]
			}
			if u.State().DownloadURL == "" {
				return views.ErrNoFile
			}

			f, err := os.Create(path)
			if err != nil {
				return errors.Wrap(err, "creating file")
			}
			n, err := u.Download(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(path)
				return err
			}
			fmt.Fprintf(cli.out, "Saved %s (%s).\n", path, views.HumanSize(n))
			return nil
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete the attached file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := views.NewFileUpload(cli.env, args[0])
			if err := u.Load(cmd.Context()); err != nil {
				return err
			}
			if _, err := u.Delete(cmd.Context()); err != nil {
				return err
			}
			if !yes && !cli.confirm(fmt.Sprintf("Delete %s?", u.State().FileName)) {
				u.CancelDelete()
				fmt.Fprintln(cli.out, "Kept the file.")
				return nil
			}
			deleted, err := u.Delete(cmd.Context())
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(cli.out, "There was nothing to delete.")
				return nil
			}
			fmt.Fprintln(cli.out, "Deleted.")
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(show, upload, download, del)
	return cmd
}

func (cli *commandLine) confirm(question string) bool {
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
