package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/views"
)

func (cli *commandLine) feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Request and rate AI feedback",
	}

	status := &cobra.Command{
		Use:   "status ID",
		Short: "Show the AI feedback state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := views.NewFeedbackButton(cli.env, args[0], false)
			defer b.Close()
			if err := b.Load(cmd.Context()); err != nil {
				return err
			}
			cli.printFeedback(b.State())
			return nil
		},
	}

	var wait bool
	request := &cobra.Command{
		Use:   "request ID",
		Short: "Ask for AI feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := views.NewFeedbackButton(cli.env, args[0], false)
			defer b.Close()
			if err := b.Load(cmd.Context()); err != nil {
				return err
			}
			if st := b.State().State; st == polling.StateRequested || st == polling.StateReceived {
				cli.printFeedback(b.State())
				return nil
			}
			b.Ask()
			if err := b.Confirm(cmd.Context()); err != nil {
				cli.printFeedback(b.State())
				return err
			}
			if wait && b.State().State == polling.StateRequested {
				fmt.Fprintln(cli.out, "Waiting for the feedback...")
				if err := watched(b.Wait(cmd.Context())); err != nil {
					return err
				}
			}
			cli.printFeedback(b.State())
			return nil
		},
	}
	request.Flags().BoolVar(&wait, "wait", false, "wait for the feedback")

	rate := &cobra.Command{
		Use:   "rate ID STARS",
		Short: "Rate the received feedback from 1 to 5 stars",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stars, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Errorf("stars must be a number (got '%s')", args[1])
			}
			b := views.NewFeedbackButton(cli.env, args[0], true)
			defer b.Close()
			if err := b.Load(cmd.Context()); err != nil {
				return err
			}
			if err := b.Rate(cmd.Context(), stars); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Rated %d stars.\n", stars)
			return nil
		},
	}

	cmd.AddCommand(status, request, rate)
	return cmd
}

func (cli *commandLine) printFeedback(st views.Feedback) {
	switch st.State {
	case polling.StateReceived:
		fmt.Fprintf(cli.out, "Feedback received: %s\n", st.FeedbackURL)
	case polling.StateRequested:
		fmt.Fprintln(cli.out, "Feedback requested.")
	case polling.StateError:
		fmt.Fprintf(cli.out, "Feedback failed: %s\n", st.ErrorMessage)
	default:
		fmt.Fprintln(cli.out, "No feedback requested.")
	}
}
