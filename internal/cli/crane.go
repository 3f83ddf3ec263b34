package cli

// This file implements the "crane" engine: a daemonless registry-to-registry
// copy. Pull and Tag only resolve references; Push performs the copy.

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"go.uber.org/zap"

	"swr-promote/internal/swr"
)

// craneCopy is a test seam for crane.Copy.
var craneCopy = crane.Copy

// CraneEngine copies images between registries without a docker daemon.
type CraneEngine struct {
	logger   *zap.Logger
	keychain *registryKeychain
	source   string
	target   string
}

// NewCraneEngine returns a CraneEngine using the default keychain for
// anything it was not explicitly logged into.
func NewCraneEngine(logger *zap.Logger) *CraneEngine {
	return &CraneEngine{logger: logger, keychain: &registryKeychain{}}
}

// Login records cred for registry.
func (e *CraneEngine) Login(_ context.Context, registry string, cred swr.Credential) error {
	e.logger.Info("Using registry credential", zap.String("registry", registry), zap.String("username", cred.Username))
	e.keychain.set(registry, cred)
	return nil
}

// Pull resolves source; bytes move during Push.
func (e *CraneEngine) Pull(_ context.Context, source string) error {
	if _, err := name.ParseReference(source); err != nil {
		return reportFailure(e.logger, ErrPullImageFailed, err, "Failed to pull image", map[string]any{"source": source, "component": "engine"})
	}
	e.source = source
	return nil
}

// Tag records target as the copy destination of source.
func (e *CraneEngine) Tag(_ context.Context, source, target string) error {
	if _, err := name.NewTag(target, name.StrictValidation); err != nil {
		return reportFailure(e.logger, ErrTagImageFailed, err, "Failed to tag image", map[string]any{"source": source, "target": target, "component": "engine"})
	}
	e.source = source
	e.target = target
	return nil
}

// Push copies the source to target.
func (e *CraneEngine) Push(ctx context.Context, target string) error {
	if e.source == "" || e.target != target {
		err := fmt.Errorf("push of %s without a matching tag step", target)
		return reportFailure(e.logger, ErrPushImageFailed, err, "Failed to push image", map[string]any{"target": target, "component": "engine"})
	}
	e.logger.Debug("Copying image", zap.String("source", e.source), zap.String("target", target))
	keychain := authn.NewMultiKeychain(e.keychain, authn.DefaultKeychain)
	if err := craneCopy(e.source, target, crane.WithContext(ctx), crane.WithAuthFromKeychain(keychain)); err != nil {
		return reportFailure(e.logger, ErrPushImageFailed, err, "Failed to push image", map[string]any{"source": e.source, "target": target, "component": "engine"})
	}
	Success(fmt.Sprintf("Pushed %s", target))
	return nil
}

// Cleanup drops every credential recorded by Login.
func (e *CraneEngine) Cleanup(context.Context) error {
	e.keychain.reset()
	return nil
}

// registryKeychain serves credentials recorded by Login and defers to the
// next keychain for every other registry.
type registryKeychain struct {
	creds map[string]swr.Credential
}

func (k *registryKeychain) set(registry string, cred swr.Credential) {
	if k.creds == nil {
		k.creds = make(map[string]swr.Credential)
	}
	k.creds[registry] = cred
}

func (k *registryKeychain) reset() {
	k.creds = nil
}

// Resolve implements authn.Keychain.
func (k *registryKeychain) Resolve(res authn.Resource) (authn.Authenticator, error) {
	cred, ok := k.creds[res.RegistryStr()]
	if !ok {
		return authn.Anonymous, nil
	}
	return authn.FromConfig(authn.AuthConfig{Username: cred.Username, Password: cred.Password}), nil
}
