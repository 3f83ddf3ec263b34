package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"swr-promote/internal/swr"
)

// Engine names accepted by --engine.
const (
	EngineCLI   = "cli"
	EngineAPI   = "api"
	EngineCrane = "crane"
)

// Engine moves image bytes: it authenticates against the destination
// registry, pulls the source, re-tags it and pushes the destination.
// Cleanup discards whatever Login left behind and is safe to call when
// Login was never called.
type Engine interface {
	Login(ctx context.Context, registry string, cred swr.Credential) error
	Pull(ctx context.Context, source string) error
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, target string) error
	Cleanup(ctx context.Context) error
}

// newEngine builds the engine named by cfg.Engine.
func newEngine(cfg *Config, exec Executor, logger *zap.Logger) (Engine, error) {
	switch cfg.Engine {
	case EngineCLI, "":
		return NewDockerCLIEngine(exec, cfg.DockerConfig, logger), nil
	case EngineAPI:
		engine, err := NewDockerAPIEngine(logger)
		if err != nil {
			return nil, wrapWithSentinel(ErrEngineInitFailed, err, fmt.Sprintf("failed to initialize docker api client: %v", err))
		}
		return engine, nil
	case EngineCrane:
		return NewCraneEngine(logger), nil
	default:
		return nil, newWithSentinel(ErrUnknownEngine, fmt.Sprintf("unknown engine %q", cfg.Engine))
	}
}
