package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/notebookgrader/grader-client/config"
	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/nav"
	"github.com/notebookgrader/grader-client/objstore"
	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/views"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal   // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	// dir holds the .env.<env> files
	dir string

	cfg     *config.Config
	env     views.Env
	rollbar *logger.Rollbar

	mu         sync.Mutex
	dests      nav.Destinations
	redirected []nav.Destination
}

func newCommandLine(in io.Reader, out, errOut io.Writer) *commandLine {
	return &commandLine{in: in, out: out, errOut: errOut}
}

func newRootCmd(cli *commandLine) *cobra.Command {
	root := &cobra.Command{
		Use:               "grader",
		Short:             "Work with homework, AI feedback and grades on the notebook grading server",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetIn(cli.in)
	root.SetOut(cli.out)
	root.SetErr(cli.errOut)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		cli.homeworkCmd(),
		cli.feedbackCmd(),
		cli.fileCmd(),
		cli.accessURLCmd(),
		cli.participantsCmd(),
	)
	return root
}

// setup loads the configuration and builds the shared view environment
func (cli *commandLine) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags(), cli.dir)
	if err != nil {
		return err
	}
	cli.cfg = cfg

	console := logger.NewConsole(cli.errOut, cfg.Debug)
	cli.rollbar = logger.NewRollbar(console, logger.RollbarConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		CodeVersion: Version,
	})

	if cfg.Token == "" {
		if cfg.Token, err = cli.promptToken(); err != nil {
			return err
		}
	}

	client, err := grader.NewClient(cfg.ServerURL, cfg.Token, cfg.Timeout, cli.rollbar)
	if err != nil {
		return err
	}
	routes := grader.RoutesFor(client.BaseURL(), "")
	cli.dests = nav.Destinations{AccessDenied: routes.CredentialsError, InternalError: routes.InternalError}

	cli.env = views.Env{
		Client:    client,
		Storage:   objstore.New(0, cli.rollbar),
		Navigator: nav.Func(cli.redirect),
		Log:       cli.rollbar,
		Polling:   cfg.Polling(),
	}
	return nil
}

// teardown flushes pending error reports
func (cli *commandLine) teardown() {
	if cli.rollbar != nil {
		cli.rollbar.Close()
	}
}

func (cli *commandLine) promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminalFunc(fd) {
		return "", nil
	}
	fmt.Fprint(cli.errOut, "Session token: ")
	token, err := readPasswordFunc(fd)
	fmt.Fprintln(cli.errOut)
	if err != nil {
		return "", errors.Wrap(err, "reading token")
	}
	return strings.TrimSpace(string(token)), nil
}

// redirect is where the browser would have been sent
func (cli *commandLine) redirect(d nav.Destination) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	cli.redirected = append(cli.redirected, d)
	fmt.Fprintf(cli.errOut, "redirected to %s\n", cli.dests.URL(d))
}

// watched turns a poll that did not complete into an error
func watched(res polling.Result, err error) error {
	if err != nil {
		return err
	}
	if res.Outcome == polling.OutcomeCompleted {
		return nil
	}
	if res.Err != nil {
		return errors.Wrapf(res.Err, "stopped watching (%s)", res.Outcome)
	}
	return errors.Errorf("stopped watching (%s)", res.Outcome)
}
