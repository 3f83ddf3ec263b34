package cli

// This file implements the default engine: the docker CLI driven through the
// Executor seam. Login writes the credential file, Cleanup removes it.

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"swr-promote/internal/swr"
)

// DockerCLIEngine drives the local docker binary.
type DockerCLIEngine struct {
	exec           Executor
	credentialFile string
	logger         *zap.Logger
}

// NewDockerCLIEngine returns an engine that removes credentialFile on Cleanup.
func NewDockerCLIEngine(exec Executor, credentialFile string, logger *zap.Logger) *DockerCLIEngine {
	return &DockerCLIEngine{
		exec:           exec,
		credentialFile: credentialFile,
		logger:         logger,
	}
}

func dockerValidators() []ExecValidator {
	return []ExecValidator{AllowlistBins("docker"), NoShellMeta(), NoControlChars()}
}

// run executes name with args, logging the combined output at debug level.
func (e *DockerCLIEngine) run(ctx context.Context, name string, args []string, stdin io.Reader, validators []ExecValidator) ([]byte, error) {
	spec := ExecSpec{Name: name, Args: args}
	cmd, err := e.exec.Command(ctx, name, args, validators...)
	if err != nil {
		return nil, err
	}
	if stdin != nil {
		cmd.SetStdin(stdin)
	}
	out, err := cmd.CombinedOutput()
	e.logger.Debug("Command finished",
		zap.String("command", spec.String()),
		zap.String("output", strings.TrimSpace(string(out))),
		zap.Error(err))
	if err != nil && len(out) > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return out, err
}

// Login logs docker into registry. The password goes through stdin, never argv.
func (e *DockerCLIEngine) Login(ctx context.Context, registry string, cred swr.Credential) error {
	e.logger.Info("Logging into registry", zap.String("registry", registry), zap.String("username", cred.Username))

	// #nosec G204 -- credentials from the SWR secret; password via stdin.
	_, err := e.run(ctx, "docker", []string{"login", "-u", cred.Username, "--password-stdin", registry}, strings.NewReader(cred.Password), dockerValidators())
	if err != nil {
		wrappedErr := wrapWithSentinelAndContext(
			ErrRegistryLoginFailed,
			err,
			fmt.Sprintf("failed to login to registry: %v", err),
			map[string]any{"registry": registry, "component": "engine"},
		)
		Error("Failed to login to registry")
		logStructuredError(e.logger, wrappedErr, "Failed to login to registry")
		return wrappedErr
	}

	e.logger.Info("Successfully logged into registry")
	return nil
}

// Pull pulls source.
func (e *DockerCLIEngine) Pull(ctx context.Context, source string) error {
	stop := DefaultPrinter.SpinnerStart(fmt.Sprintf("Pulling %s", source))
	// #nosec G204 -- source is a validated image reference.
	if _, err := e.run(ctx, "docker", []string{"pull", source}, nil, dockerValidators()); err != nil {
		stop(false, fmt.Sprintf("docker pull %s", source))
		return reportFailure(e.logger, ErrPullImageFailed, err, "Failed to pull image", map[string]any{"source": source, "component": "engine"})
	}
	stop(true, fmt.Sprintf("Pulled %s", source))
	return nil
}

// Tag tags source as target.
func (e *DockerCLIEngine) Tag(ctx context.Context, source, target string) error {
	// #nosec G204 -- source/target are validated image references.
	if _, err := e.run(ctx, "docker", []string{"tag", source, target}, nil, dockerValidators()); err != nil {
		return reportFailure(e.logger, ErrTagImageFailed, err, "Failed to tag image", map[string]any{"source": source, "target": target, "component": "engine"})
	}
	return nil
}

// Push pushes target.
func (e *DockerCLIEngine) Push(ctx context.Context, target string) error {
	stop := DefaultPrinter.SpinnerStart(fmt.Sprintf("Pushing %s", target))
	// #nosec G204 -- target is a validated image reference.
	if _, err := e.run(ctx, "docker", []string{"push", target}, nil, dockerValidators()); err != nil {
		stop(false, fmt.Sprintf("docker push %s", target))
		return reportFailure(e.logger, ErrPushImageFailed, err, "Failed to push image", map[string]any{"target": target, "component": "engine"})
	}
	stop(true, fmt.Sprintf("Pushed %s", target))
	return nil
}

// Cleanup removes the credential file written by docker login.
func (e *DockerCLIEngine) Cleanup(ctx context.Context) error {
	if e.credentialFile == "" {
		return nil
	}
	validators := []ExecValidator{AllowlistBins("rm"), NoControlChars(), PathUnder(filepath.Dir(e.credentialFile))}
	// #nosec G204 -- fixed verb, path resolved from configuration.
	if _, err := e.run(ctx, "rm", []string{"-f", e.credentialFile}, nil, validators); err != nil {
		return reportFailure(e.logger, ErrRemoveCredentialFailed, err, "Failed to remove credential file", map[string]any{"path": e.credentialFile, "component": "engine"})
	}
	return nil
}
