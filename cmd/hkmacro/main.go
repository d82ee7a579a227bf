// Command hkmacro validates, extracts, formats and composes HK macro
// programs, and serves them over HTTP to the cutting machine.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mastercactapus/hkmacro/config"
)

// ExitError carries the exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

const usage = `hkmacro - HK macro toolkit for sheet laser cutting.

Usage:
  hkmacro serve   [options]
  hkmacro validate [options] FILE
  hkmacro extract [options] -op ID FILE
  hkmacro fmt     [options] FILE
  hkmacro compose [options] JOB

Run 'hkmacro COMMAND -h' for the options of a command.
`

type command func(env *env, args []string) error

var commands = map[string]command{
	"serve":    serveCmd,
	"validate": validateCmd,
	"extract":  extractCmd,
	"fmt":      fmtCmd,
	"compose":  composeCmd,
}

// env is shared by all commands.
type env struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	fs  *flag.FlagSet
	cfg *config.Config
	log *slog.Logger

	configFile *string
	logLevel   *string
	logFormat  *string
}

func newEnv(name string, stdin io.Reader, stdout, stderr io.Writer) *env {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
	e.fs = flag.NewFlagSet("hkmacro "+name, flag.ContinueOnError)
	e.fs.SetOutput(stderr)
	e.configFile = e.fs.String("config", "", "Path to an HCL config file.")
	e.logLevel = e.fs.String("log-level", "info", "Log level: debug, info, warn or error.")
	e.logFormat = e.fs.String("log-format", "text", "Log format: text or json.")
	return e
}

// parse parses args and loads the configuration.
func (e *env) parse(args []string) error {
	err := e.fs.Parse(args)
	if err == flag.ErrHelp {
		return err
	}
	if err != nil {
		return &ExitError{Code: 2, Message: ""}
	}
	e.log = newLogger(*e.logLevel, *e.logFormat, e.stderr)
	if *e.configFile == "" {
		e.cfg = config.Default()
		return nil
	}
	e.cfg, err = config.Load(*e.configFile)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}

// run executes the command line and returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
			fmt.Fprint(stdout, usage)
			return 0
		}
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	err := cmd(newEnv(args[0], stdin, stdout, stderr), args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(stderr, exitErr.Message)
		}
		return exitErr.Code
	}
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
