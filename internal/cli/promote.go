package cli

// This file implements promotion: make sure an image tag exists in SWR,
// creating the repository and pushing the image when it does not.

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swr-promote/internal/swr"
)

// Registry is the SWR control plane as seen by the promoter.
type Registry interface {
	TagStatus(ctx context.Context, target swr.Target) (swr.TagStatus, error)
	CreateRepository(ctx context.Context, target swr.Target, public bool) error
	IssueLogin(ctx context.Context) (swr.LoginSecret, error)
}

// PromoteResult summarizes a promotion.
type PromoteResult struct {
	Image             string
	Status            swr.TagStatus
	RepositoryCreated bool
	LoggedIn          bool
	Promoted          bool
}

// Promoter runs one promotion against a registry and an engine.
type Promoter struct {
	registry Registry
	engine   Engine
	reporter Reporter
	logger   *zap.Logger
}

// NewPromoter creates a Promoter with the given dependencies. The reporter
// masks the issued registry password.
func NewPromoter(registry Registry, engine Engine, reporter Reporter, logger *zap.Logger) *Promoter {
	return &Promoter{registry: registry, engine: engine, reporter: reporter, logger: logger}
}

// Promote ensures cfg's destination tag exists. An existing tag is a no-op.
func (p *Promoter) Promote(ctx context.Context, cfg *Config) (*PromoteResult, error) {
	target := cfg.Target()
	source := cfg.SourceImage()
	result := &PromoteResult{Image: target.Image()}

	if err := validateReferences(source, target); err != nil {
		return result, reportFailure(p.logger, ErrInvalidImageReference, err, "Invalid image reference",
			map[string]any{"source": source, "target": result.Image, "component": "promote"})
	}

	p.logger.Debug("Checking destination tag", zap.String("image", result.Image), zap.String("endpoint", target.ManagementEndpoint()))
	status, err := p.registry.TagStatus(ctx, target)
	if err != nil {
		return result, p.canceled(ctx, reportFailure(p.logger, ErrListTagsFailed, err, "Failed to list repository tags",
			map[string]any{"namespace": target.Namespace, "repository": target.Repository, "tag": target.Tag, "component": "registry"}))
	}
	result.Status = status

	switch status {
	case swr.TagFound:
		p.logger.Debug("ok", zap.String("image", result.Image))
		Info(fmt.Sprintf("%s already exists, nothing to do", result.Image))
		return result, nil
	case swr.RepositoryMissing:
		p.logger.Debug("Repository not found, creating it", zap.String("namespace", target.Namespace), zap.String("repository", target.Repository))
		if err := p.registry.CreateRepository(ctx, target, cfg.Public); err != nil {
			wrappedErr := wrapWithSentinelAndContext(
				ErrCreateRepositoryFailed,
				err,
				fmt.Sprintf("failed to create repository: %v", err),
				map[string]any{"namespace": target.Namespace, "repository": target.Repository, "public": cfg.Public, "component": "registry"},
			)
			// The push below reports the real failure if the repository is unusable.
			p.logger.Warn("Failed to create repository", zap.Error(wrappedErr))
			Warn(fmt.Sprintf("Failed to create repository %s/%s, continuing", target.Namespace, target.Repository))
		} else {
			result.RepositoryCreated = true
		}
	case swr.TagMissing:
	default:
		err := newWithSentinel(ErrListTagsFailed, fmt.Sprintf("failed to list repository tags: unexpected status %s", status))
		Error("Failed to list repository tags")
		logStructuredError(p.logger, err, "Failed to list repository tags")
		return result, err
	}

	Section(fmt.Sprintf("Promoting %s", result.Image))

	if err := p.transfer(ctx, source, target, result); err != nil {
		return result, p.canceled(ctx, err)
	}
	return result, nil
}

// transfer logs in, pulls, tags and pushes. The engine's credential cleanup
// is registered first and runs on every return path.
func (p *Promoter) transfer(ctx context.Context, source string, target swr.Target, result *PromoteResult) (err error) {
	defer func() {
		cerr := p.engine.Cleanup(context.WithoutCancel(ctx))
		if cerr == nil {
			return
		}
		if err == nil {
			err = cerr
			return
		}
		p.logger.Warn("Credential cleanup failed after an earlier error", zap.Error(cerr))
	}()

	secret, err := p.registry.IssueLogin(ctx)
	if err != nil {
		return reportFailure(p.logger, ErrIssueLoginFailed, err, "Failed to issue login secret",
			map[string]any{"registry": target.Registry(), "component": "registry"})
	}
	if secret.OK() {
		cred, perr := secret.Credential(target.Registry())
		if perr != nil {
			p.logger.Warn("Login secret not usable, skipping login", zap.Error(perr))
			Warn("Login secret not usable, pushing without login")
		} else {
			p.reporter.Mask(cred.Password)
			if err := p.engine.Login(ctx, target.Registry(), cred); err != nil {
				return err
			}
			result.LoggedIn = true
		}
	} else {
		p.logger.Debug("Login secret not issued, skipping login", zap.Int("status", secret.StatusCode))
	}

	image := target.Image()
	if err := p.engine.Pull(ctx, source); err != nil {
		return err
	}
	if err := p.engine.Tag(ctx, source, image); err != nil {
		return err
	}
	if err := p.engine.Push(ctx, image); err != nil {
		return err
	}
	result.Promoted = true
	return nil
}

// canceled rewraps err when ctx ended, so cancellation has its own code.
func (p *Promoter) canceled(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil || errors.Is(err, ErrPromoteCanceled) {
		return err
	}
	return wrapWithSentinel(ErrPromoteCanceled, err, fmt.Sprintf("promotion canceled: %v", ctx.Err()))
}

func validateReferences(source string, target swr.Target) error {
	if err := swr.ValidateSource(source); err != nil {
		return err
	}
	return target.Validate()
}

// PromoteManager wires configuration, registry, engine and reporter into commands.
type PromoteManager struct {
	exec        Executor
	logger      *zap.Logger
	reporter    Reporter
	newRegistry func(cfg *Config) (Registry, error)
	newEngine   func(cfg *Config) (Engine, error)
}

// NewPromoteManager creates a PromoteManager with the given dependencies.
func NewPromoteManager(exec Executor, logger *zap.Logger, reporter Reporter) *PromoteManager {
	m := &PromoteManager{
		exec:     exec,
		logger:   logger,
		reporter: reporter,
	}
	m.newRegistry = defaultRegistryFactory
	m.newEngine = func(cfg *Config) (Engine, error) {
		return newEngine(cfg, m.exec, m.logger)
	}
	return m
}

func defaultRegistryFactory(cfg *Config) (Registry, error) {
	client, err := swr.NewClient(cfg.Credentials(), cfg.Target().ManagementEndpoint())
	if err != nil {
		return nil, wrapWithSentinel(ErrRegistryClientFailed, err, fmt.Sprintf("failed to create registry client: %v", err))
	}
	return client, nil
}

// NewPromoteCmd returns the promote subcommand using this manager.
func (m *PromoteManager) NewPromoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Push an image to SWR unless the tag already exists",
		Long: `Ensure <registry>/<ns>/<repository>:<tag> exists in Huawei Cloud SWR.

If the tag is missing the image <repository>:<tag> is pulled, re-tagged and
pushed; a missing repository is created first. Every "/" in the repository
name becomes "_" on the SWR side.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := m.RunPromote(cmd)
			return err
		},
	}
	addConfigFlags(cmd)
	return cmd
}

// RunPromote resolves configuration from cmd and runs one promotion.
func (m *PromoteManager) RunPromote(cmd *cobra.Command) (*PromoteResult, error) {
	cfg, err := m.resolveConfig(cmd)
	if err != nil {
		return nil, err
	}

	registry, err := m.newRegistry(cfg)
	if err != nil {
		Error("Failed to create registry client")
		logStructuredError(m.logger, err, "Failed to create registry client")
		return nil, err
	}
	engine, err := m.newEngine(cfg)
	if err != nil {
		Error("Failed to initialize container engine")
		logStructuredError(m.logger, err, "Failed to initialize container engine")
		return nil, err
	}

	result, err := NewPromoter(registry, engine, m.reporter, m.logger).Promote(cmd.Context(), cfg)
	if result != nil {
		m.reporter.Output("image", result.Image)
		m.reporter.Output("promoted", strconv.FormatBool(result.Promoted))
	}
	if err != nil {
		return result, err
	}

	m.logger.Info("Promotion finished",
		zap.String("image", result.Image),
		zap.Stringer("status", result.Status),
		zap.Bool("promoted", result.Promoted))
	return result, nil
}

// resolveConfig loads and validates the configuration and masks the secret.
func (m *PromoteManager) resolveConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		Error("Failed to load configuration")
		logStructuredError(m.logger, err, "Failed to load configuration")
		return nil, err
	}
	m.reporter.Mask(cfg.SecretKey)
	if err := cfg.Validate(); err != nil {
		Error("Invalid configuration")
		logStructuredError(m.logger, err, "Invalid configuration")
		return nil, err
	}
	m.logger.Debug("Configuration resolved", cfg.logFields()...)
	return cfg, nil
}
