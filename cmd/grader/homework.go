package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/notebookgrader/grader-client/views"
)

func (cli *commandLine) homeworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homework",
		Short: "Obtain and grade a homework",
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show dates, grades and limits of a homework",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := views.NewHomework(cli.env, args[0], views.Features{AIFeedback: true})
			defer h.Close()
			if err := h.Init(cmd.Context()); err != nil {
				return err
			}
			cli.printHomework(h)
			return nil
		},
	}

	obtain := &cobra.Command{
		Use:   "obtain ID",
		Short: "Get the Colab notebook of a homework",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := views.NewHomework(cli.env, args[0], views.Features{})
			defer h.Close()
			url, err := h.ObtainAssignment(cmd.Context())
			if err != nil {
				return err
			}
			if url == "" {
				fmt.Fprintln(cli.out, "The notebook is not available.")
				return nil
			}
			fmt.Fprintln(cli.out, url)
			return nil
		},
	}

	var wait bool
	grade := &cobra.Command{
		Use:   "grade ID",
		Short: "Ask for a grade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := views.NewHomework(cli.env, args[0], views.Features{GradePolling: wait})
			defer h.Close()
			if err := h.Init(cmd.Context()); err != nil {
				return err
			}
			out, err := h.GradeHomework(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, out.Outcome)
			if out.IsError || !wait {
				return nil
			}
			fmt.Fprintln(cli.out, "Waiting for the grade...")
			if err := watched(h.WaitGrading(cmd.Context())); err != nil {
				return err
			}
			cli.printGrades(h.State().Grades)
			return nil
		},
	}
	grade.Flags().BoolVar(&wait, "wait", false, "wait for the grade")

	waitCmd := &cobra.Command{
		Use:   "wait ID",
		Short: "Wait for a pending grading request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := views.NewHomework(cli.env, args[0], views.Features{GradePolling: true})
			defer h.Close()
			if err := h.Init(cmd.Context()); err != nil {
				return err
			}
			if !h.State().IsGrading {
				fmt.Fprintln(cli.out, "No grading request is pending.")
				return nil
			}
			if err := watched(h.WaitGrading(cmd.Context())); err != nil {
				return err
			}
			cli.printGrades(h.State().Grades)
			return nil
		},
	}

	cmd.AddCommand(show, obtain, grade, waitCmd)
	return cmd
}

func (cli *commandLine) printHomework(h *views.Homework) {
	st := h.State()
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Available from:\t%s\n", st.DateAvailable)
	fmt.Fprintf(w, "Deadline:\t%s\n", st.DateDeadline)
	fmt.Fprintf(w, "Closes:\t%s\n", st.DateCloses)

	switch {
	case st.DriveURL != "":
		fmt.Fprintf(w, "Notebook:\t%s\n", st.DriveURL)
	case h.AssignmentNotYetOpen():
		fmt.Fprintf(w, "Notebook:\tnot open yet\n")
	case h.AssignmentIsAvailable():
		fmt.Fprintf(w, "Notebook:\tnot obtained\n")
	default:
		fmt.Fprintf(w, "Notebook:\tnot available\n")
	}
	if !h.SubmissionOpen() {
		fmt.Fprintf(w, "Submissions:\tclosed\n")
	}
	fmt.Fprintf(w, "Gradings left (24h):\t%d of %d\n", h.AvailableGrades(), st.MaxIn24h)
	if st.HasPending {
		fmt.Fprintf(w, "Grading:\tpending\n")
	}
	if fb := h.Feedback(); fb != nil {
		fmt.Fprintf(w, "AI feedback:\t%s (%d received)\n", fb.State().State, st.NumAIFeedback)
	}
	_ = w.Flush()
	cli.printGrades(st.Grades)
}

func (cli *commandLine) printGrades(grades []views.GradeView) {
	if len(grades) == 0 {
		fmt.Fprintln(cli.out, "No grades yet.")
		return
	}
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tGRADE\tVALID")
	for _, g := range grades {
		fmt.Fprintf(w, "%s\t%g\t%t\n", g.Display, g.Grade.Grade, g.IsValid)
	}
	_ = w.Flush()
}
