package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mastercactapus/hkmacro/compose"
	"github.com/mastercactapus/hkmacro/extract"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/validate"
)

func (e *env) readFile(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(name)
}

func (e *env) writeOutput(name, text string) error {
	if name == "" || name == "-" {
		_, err := io.WriteString(e.stdout, text)
		return err
	}
	return os.WriteFile(name, []byte(text), 0644)
}

func (e *env) arg() (string, error) {
	if e.fs.NArg() != 1 {
		e.fs.Usage()
		return "", &ExitError{Code: 2, Message: "expected exactly one file argument"}
	}
	return e.fs.Arg(0), nil
}

// load parses and validates a program file.
func (e *env) load(name string) (*hk.Program, []hk.Issue, error) {
	data, err := e.readFile(name)
	if err != nil {
		return nil, nil, err
	}
	p, err := hk.ParseWith(string(data), e.cfg.ParseOptions())
	if err != nil {
		return nil, nil, &ExitError{Code: 1, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	e.cfg.Header(p)
	return p, validate.Validate(p, e.cfg.Technology, e.cfg.Limits), nil
}

func (e *env) printIssues(w io.Writer, issues []hk.Issue) {
	for _, i := range issues {
		fmt.Fprintln(w, i)
	}
}

func validateCmd(e *env, args []string) error {
	if err := e.parse(args); err != nil {
		return err
	}
	name, err := e.arg()
	if err != nil {
		return err
	}
	_, issues, err := e.load(name)
	if err != nil {
		return err
	}

	e.printIssues(e.stdout, issues)
	errs, warns := hk.Count(issues)
	fmt.Fprintf(e.stdout, "%s: %d error(s), %d warning(s)\n", name, errs, warns)
	if errs > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func extractCmd(e *env, args []string) error {
	op := e.fs.Int("op", 0, "Operation ID to extract.")
	margin := e.fs.Float64("margin", -1, "Sheet margin in mm. Negative uses the configured margin.")
	out := e.fs.String("o", "", "Output file. Defaults to stdout.")
	if err := e.parse(args); err != nil {
		return err
	}
	name, err := e.arg()
	if err != nil {
		return err
	}
	if *op == 0 {
		return &ExitError{Code: 2, Message: "-op is required"}
	}
	if *margin < 0 {
		*margin = e.cfg.SheetMargin
	}

	p, issues, err := e.load(name)
	if err != nil {
		return err
	}
	if hk.HasErrors(issues) {
		e.printIssues(e.stderr, issues)
		return &ExitError{Code: 1, Message: "refusing to extract from a program with errors"}
	}

	res, err := extract.Extract(p, *op, e.cfg.Technology, *margin)
	var xerr *extract.Error
	if errors.As(err, &xerr) {
		return &ExitError{Code: 1, Message: xerr.Error()}
	}
	if err != nil {
		return err
	}
	e.printIssues(e.stderr, res.Warnings)

	return e.writeOutput(*out, hk.Emit(res.Program, e.cfg.Emit))
}

func fmtCmd(e *env, args []string) error {
	write := e.fs.Bool("w", false, "Write the result back to the file.")
	placement := e.fs.String("when-placement", "", "Conditional placement: recorded, beforeLastCut or end.")
	endMarker := e.fs.Bool("end-marker", false, "Emit HKPED after every cut block.")
	if err := e.parse(args); err != nil {
		return err
	}
	name, err := e.arg()
	if err != nil {
		return err
	}

	opts := e.cfg.Emit
	if *placement != "" {
		opts.WhenPlacement, err = hk.ParseWhenPlacement(*placement)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
	}
	if *endMarker {
		opts.EndMarker = true
	}

	data, err := e.readFile(name)
	if err != nil {
		return err
	}
	p, err := hk.ParseWith(string(data), e.cfg.ParseOptions())
	if err != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%s: %v", name, err)}
	}

	text := hk.Emit(p, opts)
	if *write && name != "-" {
		return os.WriteFile(name, []byte(text), 0644)
	}
	return e.writeOutput("", text)
}

func composeCmd(e *env, args []string) error {
	out := e.fs.String("o", "", "Output file. Defaults to stdout.")
	if err := e.parse(args); err != nil {
		return err
	}
	name, err := e.arg()
	if err != nil {
		return err
	}

	data, err := e.readFile(name)
	if err != nil {
		return err
	}
	job, err := compose.ParseJob(data)
	if err != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	p, warnings, err := compose.Build(job, e.cfg.Technology)
	if err != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	e.cfg.Header(p)

	issues := append(warnings, validate.Validate(p, e.cfg.Technology, e.cfg.Limits)...)
	e.printIssues(e.stderr, issues)
	if hk.HasErrors(issues) {
		return &ExitError{Code: 1, Message: "composed program has errors"}
	}

	return e.writeOutput(*out, hk.Emit(p, e.cfg.Emit))
}
