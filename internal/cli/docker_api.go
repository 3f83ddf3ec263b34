package cli

// This file implements the "api" engine against the Docker Engine API. No
// credential file is written: the login is kept in memory and sent as the
// X-Registry-Auth header of the push.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"go.uber.org/zap"

	"swr-promote/internal/swr"
)

// dockerAPI is the subset of *client.Client used by DockerAPIEngine.
type dockerAPI interface {
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

// DockerAPIEngine talks to the docker daemon over its API.
type DockerAPIEngine struct {
	api          dockerAPI
	logger       *zap.Logger
	registryAuth string
}

// NewDockerAPIEngine connects using DOCKER_HOST and friends.
func NewDockerAPIEngine(logger *zap.Logger) (*DockerAPIEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return newDockerAPIEngine(cli, logger), nil
}

func newDockerAPIEngine(api dockerAPI, logger *zap.Logger) *DockerAPIEngine {
	return &DockerAPIEngine{api: api, logger: logger}
}

// Login verifies cred with the daemon and keeps it for Push.
func (e *DockerAPIEngine) Login(ctx context.Context, registryHost string, cred swr.Credential) error {
	e.logger.Info("Logging into registry", zap.String("registry", registryHost), zap.String("username", cred.Username))

	auth := registry.AuthConfig{
		Username:      cred.Username,
		Password:      cred.Password,
		ServerAddress: registryHost,
	}
	if _, err := e.api.RegistryLogin(ctx, auth); err != nil {
		return reportFailure(e.logger, ErrRegistryLoginFailed, err, "Failed to login to registry", map[string]any{"registry": registryHost, "component": "engine"})
	}
	encoded, err := registry.EncodeAuthConfig(auth)
	if err != nil {
		return reportFailure(e.logger, ErrRegistryLoginFailed, err, "Failed to login to registry", map[string]any{"registry": registryHost, "component": "engine"})
	}
	e.registryAuth = encoded
	return nil
}

// Pull pulls source and waits for the progress stream to finish.
func (e *DockerAPIEngine) Pull(ctx context.Context, source string) error {
	rc, err := e.api.ImagePull(ctx, source, image.PullOptions{})
	if err == nil {
		err = e.drain(rc, "pull")
	}
	if err != nil {
		return reportFailure(e.logger, ErrPullImageFailed, err, "Failed to pull image", map[string]any{"source": source, "component": "engine"})
	}
	return nil
}

// Tag tags source as target.
func (e *DockerAPIEngine) Tag(ctx context.Context, source, target string) error {
	if err := e.api.ImageTag(ctx, source, target); err != nil {
		return reportFailure(e.logger, ErrTagImageFailed, err, "Failed to tag image", map[string]any{"source": source, "target": target, "component": "engine"})
	}
	e.logger.Debug("Tagged image", zap.String("source", source), zap.String("target", target))
	return nil
}

// Push pushes target with the credential from Login, if any.
func (e *DockerAPIEngine) Push(ctx context.Context, target string) error {
	rc, err := e.api.ImagePush(ctx, target, image.PushOptions{RegistryAuth: e.registryAuth})
	if err == nil {
		err = e.drain(rc, "push")
	}
	if err != nil {
		return reportFailure(e.logger, ErrPushImageFailed, err, "Failed to push image", map[string]any{"target": target, "component": "engine"})
	}
	Success(fmt.Sprintf("Pushed %s", target))
	return nil
}

// Cleanup forgets the in-memory credential.
func (e *DockerAPIEngine) Cleanup(context.Context) error {
	e.registryAuth = ""
	return nil
}

// drain consumes a JSON progress stream. Errors reported inside the stream
// are returned even though the HTTP call itself succeeded.
func (e *DockerAPIEngine) drain(rc io.ReadCloser, step string) error {
	defer rc.Close()
	var out bytes.Buffer
	err := jsonmessage.DisplayJSONMessagesStream(rc, &out, 0, false, nil)
	e.logger.Debug(step+" out", zap.String("output", strings.TrimSpace(out.String())), zap.Error(err))
	return err
}
