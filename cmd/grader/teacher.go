package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notebookgrader/grader-client/views"
)

func (cli *commandLine) accessURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-url",
		Short: "Manage the invitation URL of an assignment",
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show the invitation URL and the notebook links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := views.NewAccessPage(cli.env, args[0])
			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			st := p.State()
			fmt.Fprintf(cli.out, "Access URL:          %s\n", st.AccessURL)
			fmt.Fprintf(cli.out, "Instructor notebook: %s\n", st.InstructorVersion)
			fmt.Fprintf(cli.out, "Student notebook:    %s\n", st.StudentVersion)
			return nil
		},
	}

	regenerate := &cobra.Command{
		Use:   "regenerate ID",
		Short: "Invalidate the invitation URL and print the new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := views.NewAccessPage(cli.env, args[0]).Regenerate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, url)
			return nil
		},
	}

	cmd.AddCommand(show, regenerate)
	return cmd
}

func (cli *commandLine) participantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Participants of an assignment",
	}

	var dir string
	download := &cobra.Command{
		Use:   "download ID",
		Short: "Save the grades of every participant as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := views.NewParticipants(cli.env, args[0]).Download(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Saved %s.\n", path)
			return nil
		},
	}
	download.Flags().StringVar(&dir, "dir", ".", "directory to save the CSV file in")

	cmd.AddCommand(download)
	return cmd
}
