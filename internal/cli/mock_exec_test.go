package cli

import (
	"bytes"
	"context"
	"io"
)

// MockExecutor records every command and hands out MockCommands.
type MockExecutor struct {
	Commands []ExecSpec

	// CommandFunc, when set, builds the command for a spec.
	CommandFunc func(spec ExecSpec) *MockCommand

	// Defaults for commands built without CommandFunc.
	DefaultOutput []byte
	DefaultErr    error
	DefaultRunErr error

	// CommandErr is returned by Command itself, e.g. to simulate a validator rejection.
	CommandErr error
}

func (m *MockExecutor) Command(_ context.Context, name string, args []string, validators ...ExecValidator) (Command, error) {
	spec := ExecSpec{Name: name, Args: append([]string(nil), args...)}
	for _, validate := range validators {
		if err := validate(spec); err != nil {
			return nil, err
		}
	}
	if m.CommandErr != nil {
		return nil, m.CommandErr
	}
	m.Commands = append(m.Commands, spec)

	if m.CommandFunc != nil {
		cmd := m.CommandFunc(spec)
		cmd.Name = name
		return cmd, nil
	}
	return &MockCommand{
		Name:       name,
		Args:       spec.Args,
		OutputData: m.DefaultOutput,
		OutputErr:  m.DefaultErr,
		RunErr:     m.DefaultRunErr,
	}, nil
}

// LastCommand returns the most recent command, or an empty spec.
func (m *MockExecutor) LastCommand() ExecSpec {
	if len(m.Commands) == 0 {
		return ExecSpec{}
	}
	return m.Commands[len(m.Commands)-1]
}

// HasCommand reports whether a command with the given binary name ran.
func (m *MockExecutor) HasCommand(name string) bool {
	for _, spec := range m.Commands {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// CommandLines returns every recorded command as a single string.
func (m *MockExecutor) CommandLines() []string {
	lines := make([]string, 0, len(m.Commands))
	for _, spec := range m.Commands {
		lines = append(lines, spec.String())
	}
	return lines
}

// MockCommand is a scripted Command.
type MockCommand struct {
	Name       string
	Args       []string
	OutputData []byte
	OutputErr  error
	RunErr     error
	RunFunc    func() error

	StdinR  io.Reader
	StdoutW io.Writer
	StderrW io.Writer
}

func (c *MockCommand) Output() ([]byte, error) {
	return c.OutputData, c.OutputErr
}

func (c *MockCommand) CombinedOutput() ([]byte, error) {
	if c.RunFunc != nil {
		var buf bytes.Buffer
		if c.StdoutW == nil {
			c.StdoutW = &buf
		}
		if c.StderrW == nil {
			c.StderrW = &buf
		}
		err := c.RunFunc()
		return buf.Bytes(), err
	}
	if c.OutputErr != nil {
		return c.OutputData, c.OutputErr
	}
	return c.OutputData, c.RunErr
}

func (c *MockCommand) Run() error {
	if c.RunFunc != nil {
		return c.RunFunc()
	}
	return c.RunErr
}

func (c *MockCommand) SetStdout(w io.Writer) { c.StdoutW = w }
func (c *MockCommand) SetStderr(w io.Writer) { c.StderrW = w }
func (c *MockCommand) SetStdin(r io.Reader)  { c.StdinR = r }

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
