package cli

import (
	"io"
	"os"

	"github.com/sethvargo/go-githubactions"

	"swr-promote/pkg/errx"
)

// Reporter publishes run results to the CI system.
type Reporter interface {
	Mask(value string)
	Output(key, value string)
	Fail(err error)
}

// ActionReporter writes GitHub Actions workflow commands. Outside a
// workflow run masks and outputs are dropped so secrets never reach a
// plain terminal.
type ActionReporter struct {
	action  *githubactions.Action
	enabled bool
	stderr  io.Writer
}

// NewActionReporter returns a reporter bound to the process environment.
func NewActionReporter() *ActionReporter {
	return newActionReporter(os.Stdout, os.Stderr, os.Getenv)
}

func newActionReporter(stdout, stderr io.Writer, getenv func(string) string) *ActionReporter {
	return &ActionReporter{
		action:  githubactions.New(githubactions.WithWriter(stdout), githubactions.WithGetenv(getenv)),
		enabled: getenv("GITHUB_ACTIONS") == "true",
		stderr:  stderr,
	}
}

// Mask hides value in subsequent workflow logs.
func (r *ActionReporter) Mask(value string) {
	if !r.enabled || value == "" {
		return
	}
	r.action.AddMask(value)
}

// Output sets a step output.
func (r *ActionReporter) Output(key, value string) {
	if !r.enabled {
		return
	}
	r.action.SetOutput(key, value)
}

// Fail reports err once: as an error annotation inside a workflow, as a
// plain line on stderr otherwise.
func (r *ActionReporter) Fail(err error) {
	if err == nil {
		return
	}
	msg := errx.AnnotationString(err)
	if r.enabled {
		r.action.Errorf("%s", msg)
		return
	}
	_, _ = io.WriteString(r.stderr, "Error: "+msg+"\n")
}
