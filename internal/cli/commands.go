package cli

// This file implements the read-only and helper commands: check, login and errors.

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swr-promote/internal/swr"
	"swr-promote/pkg/errx"
)

// NewCheckCmd returns the check subcommand using this manager.
func (m *PromoteManager) NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show whether the destination tag exists",
		Long:  "Look up the destination tag in SWR and print its status without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := m.CheckTag(cmd)
			return err
		},
	}
	addConfigFlags(cmd)
	return cmd
}

// CheckTag looks up the destination tag and displays the result.
func (m *PromoteManager) CheckTag(cmd *cobra.Command) (swr.TagStatus, error) {
	cfg, err := m.resolveConfig(cmd)
	if err != nil {
		return swr.TagUnknown, err
	}
	registry, err := m.newRegistry(cfg)
	if err != nil {
		Error("Failed to create registry client")
		logStructuredError(m.logger, err, "Failed to create registry client")
		return swr.TagUnknown, err
	}

	target := cfg.Target()
	m.logger.Info("Checking destination tag", zap.String("image", target.Image()))
	status, err := registry.TagStatus(cmd.Context(), target)
	if err != nil {
		return status, reportFailure(m.logger, ErrListTagsFailed, err, "Failed to list repository tags",
			map[string]any{"namespace": target.Namespace, "repository": target.Repository, "tag": target.Tag, "component": "registry"})
	}

	Header("Destination Status")
	DefaultPrinter.Println()

	state := Green("Present")
	switch status {
	case swr.TagUnknown:
		state = Red("Unknown")
	case swr.TagMissing:
		state = Yellow("Tag missing")
	case swr.RepositoryMissing:
		state = Red("Repository missing")
	}
	TableBoxed([][]string{
		{"Property", "Value"},
		{"Status", state},
		{"Image", Cyan(target.Image())},
		{"Source", cfg.SourceImage()},
		{"Endpoint", target.ManagementEndpoint()},
	})

	m.reporter.Output("image", target.Image())
	m.reporter.Output("exists", fmt.Sprint(status == swr.TagFound))
	return status, nil
}

// NewLoginCmd returns the login subcommand using this manager.
func (m *PromoteManager) NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log docker into the SWR registry",
		Long: `Issue a temporary SWR login secret and run docker login with it.

The credential file is kept so later workflow steps can push.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return m.Login(cmd)
		},
	}
	addConfigFlags(cmd)
	return cmd
}

// Login issues a login secret and logs the cli engine into the registry.
func (m *PromoteManager) Login(cmd *cobra.Command) error {
	cfg, err := m.resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Engine != EngineCLI {
		err := newWithSentinel(ErrUnknownEngine, fmt.Sprintf("login needs the %s engine, got %q", EngineCLI, cfg.Engine))
		Error("Login needs the docker CLI engine")
		logStructuredError(m.logger, err, "Login needs the docker CLI engine")
		return err
	}

	registry, err := m.newRegistry(cfg)
	if err != nil {
		Error("Failed to create registry client")
		logStructuredError(m.logger, err, "Failed to create registry client")
		return err
	}
	engine, err := m.newEngine(cfg)
	if err != nil {
		return err
	}

	host := cfg.Target().Registry()
	secret, err := registry.IssueLogin(cmd.Context())
	if err != nil {
		return reportFailure(m.logger, ErrIssueLoginFailed, err, "Failed to issue login secret",
			map[string]any{"registry": host, "component": "registry"})
	}
	if !secret.OK() {
		err := newWithSentinel(ErrIssueLoginFailed, fmt.Sprintf("failed to issue login secret: status %d", secret.StatusCode))
		Error("Failed to issue login secret")
		logStructuredError(m.logger, err, "Failed to issue login secret")
		return err
	}
	cred, err := secret.Credential(host)
	if err != nil {
		return reportFailure(m.logger, ErrRegistryLoginFailed, err, "Login secret not usable",
			map[string]any{"registry": host, "component": "registry"})
	}
	m.reporter.Mask(cred.Password)
	if err := engine.Login(cmd.Context(), host, cred); err != nil {
		return err
	}
	Success(fmt.Sprintf("Logged into %s", host))
	return nil
}

// NewErrorsCmd returns the errors subcommand listing error codes.
func NewErrorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "List error codes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			PrintErrorCodes()
		},
	}
}

// PrintErrorCodes renders the errx code registry.
func PrintErrorCodes() {
	rows := [][]string{{"Code", "Category"}}
	for _, entry := range errx.ErrorRegistry() {
		rows = append(rows, []string{entry.Code, entry.Description})
	}
	Header("Error Codes")
	Table(rows)
}
