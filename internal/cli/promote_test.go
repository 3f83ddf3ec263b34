package cli

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/sdkerr"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/swr/v2/model"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"swr-promote/internal/swr"
	"swr-promote/pkg/errx"
)

const testLoginCommand = "docker login -u ap-southeast-1@AK -p s3cret swr.ap-southeast-1.myhuaweicloud.com"

// fakeSWR implements swr.API and records every request.
type fakeSWR struct {
	listReqs   []*model.ListRepositoryTagsRequest
	createReqs []*model.CreateRepoRequest
	secretReqs int

	tags       int
	listErr    error
	createErr  error
	secretErr  error
	secretCode int
	loginLine  string
}

func newFakeSWR() *fakeSWR {
	return &fakeSWR{secretCode: http.StatusOK, loginLine: testLoginCommand}
}

func (f *fakeSWR) ListRepositoryTags(req *model.ListRepositoryTagsRequest) (*model.ListRepositoryTagsResponse, error) {
	f.listReqs = append(f.listReqs, req)
	if f.listErr != nil {
		return nil, f.listErr
	}
	body := make([]model.ShowReposTagResp, f.tags)
	return &model.ListRepositoryTagsResponse{Body: &body, HttpStatusCode: http.StatusOK}, nil
}

func (f *fakeSWR) CreateRepo(req *model.CreateRepoRequest) (*model.CreateRepoResponse, error) {
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.CreateRepoResponse{HttpStatusCode: http.StatusCreated}, nil
}

func (f *fakeSWR) CreateSecret(*model.CreateSecretRequest) (*model.CreateSecretResponse, error) {
	f.secretReqs++
	if f.secretErr != nil {
		return nil, f.secretErr
	}
	line := f.loginLine
	return &model.CreateSecretResponse{XSwrDockerlogin: &line, HttpStatusCode: f.secretCode}, nil
}

func notFound() error {
	return &sdkerr.ServiceResponseError{StatusCode: http.StatusNotFound, ErrorCode: "SVCSTG.SWR.4040004", ErrorMessage: "repository not found"}
}

type fakeReporter struct {
	masks   []string
	outputs map[string]string
	failed  []error
}

func (r *fakeReporter) Mask(value string) { r.masks = append(r.masks, value) }
func (r *fakeReporter) Output(key, value string) {
	if r.outputs == nil {
		r.outputs = map[string]string{}
	}
	r.outputs[key] = value
}
func (r *fakeReporter) Fail(err error) { r.failed = append(r.failed, err) }

func testConfig() *Config {
	return &Config{
		ProjectID:    "proj",
		AccessKey:    "AK",
		SecretKey:    "SK",
		Region:       "ap-southeast-1",
		Namespace:    "myns",
		Repository:   "team/app",
		Tag:          "v1",
		Engine:       EngineCLI,
		Public:       true,
		DockerConfig: testDockerCfg,
	}
}

func newTestPromoter(api *fakeSWR, mock *MockExecutor) *Promoter {
	return NewPromoter(swr.New(api), NewDockerCLIEngine(mock, testDockerCfg, zap.NewNop()), &fakeReporter{}, zap.NewNop())
}

// stubRegistry returns a fixed lookup result.
type stubRegistry struct {
	status      swr.TagStatus
	createCalls int
	loginCalls  int
}

func (s *stubRegistry) TagStatus(context.Context, swr.Target) (swr.TagStatus, error) {
	return s.status, nil
}

func (s *stubRegistry) CreateRepository(context.Context, swr.Target, bool) error {
	s.createCalls++
	return nil
}

func (s *stubRegistry) IssueLogin(context.Context) (swr.LoginSecret, error) {
	s.loginCalls++
	return swr.LoginSecret{StatusCode: http.StatusOK, Command: testLoginCommand}, nil
}

var promoteCommands = []string{
	"docker login -u ap-southeast-1@AK --password-stdin " + testRegistry,
	"docker pull team/app:v1",
	"docker tag team/app:v1 " + testDestination,
	"docker push " + testDestination,
	"rm -f " + testDockerCfg,
}

func assertCommands(t *testing.T, mock *MockExecutor, want []string) {
	t.Helper()
	got := mock.CommandLines()
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestPromote_TagExists(t *testing.T) {
	api := newFakeSWR()
	api.tags = 1
	mock := &MockExecutor{}

	result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, swr.TagFound, result.Status)
	assert.False(t, result.Promoted)
	assert.Equal(t, testDestination, result.Image)
	assert.Len(t, api.listReqs, 1)
	assert.Empty(t, api.createReqs)
	assert.Zero(t, api.secretReqs)
	assertCommands(t, mock, nil)
}

func TestPromote_RepositoryMissing(t *testing.T) {
	api := newFakeSWR()
	api.listErr = notFound()
	mock := &MockExecutor{}

	result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, swr.RepositoryMissing, result.Status)
	assert.True(t, result.RepositoryCreated)
	assert.True(t, result.LoggedIn)
	assert.True(t, result.Promoted)

	require.Len(t, api.createReqs, 1)
	assert.Equal(t, "myns", api.createReqs[0].Namespace)
	assert.Equal(t, "team_app", api.createReqs[0].Body.Repository)
	assert.True(t, api.createReqs[0].Body.IsPublic)
	assert.Equal(t, 1, api.secretReqs)
	assertCommands(t, mock, promoteCommands)
}

func TestPromote_TagMissing(t *testing.T) {
	api := newFakeSWR()
	mock := &MockExecutor{}

	result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, swr.TagMissing, result.Status)
	assert.False(t, result.RepositoryCreated)
	assert.Empty(t, api.createReqs, "existing repository is not recreated")
	assertCommands(t, mock, promoteCommands)
}

func TestPromote_LoginSkipped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(api *fakeSWR)
	}{
		{name: "non-200 status", setup: func(api *fakeSWR) { api.secretCode = http.StatusAccepted }},
		{name: "service error", setup: func(api *fakeSWR) {
			api.secretErr = &sdkerr.ServiceResponseError{StatusCode: http.StatusUnauthorized, ErrorMessage: "unauthorized"}
		}},
		{name: "unparsable command", setup: func(api *fakeSWR) { api.loginLine = "podman login" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeSWR()
			api.listErr = notFound()
			tt.setup(api)
			mock := &MockExecutor{}

			result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
			require.NoError(t, err)

			assert.False(t, result.LoggedIn)
			assert.True(t, result.Promoted)
			assertCommands(t, mock, promoteCommands[1:])
		})
	}
}

func TestPromote_SecretTransportError(t *testing.T) {
	api := newFakeSWR()
	api.secretErr = errors.New("dial tcp: i/o timeout")
	mock := &MockExecutor{}

	_, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIssueLoginFailed))
	assertCommands(t, mock, []string{"rm -f " + testDockerCfg})
}

func TestPromote_EngineFailureStillCleansUp(t *testing.T) {
	tests := []struct {
		name     string
		failVerb string
		wantErr  error
		want     []string
	}{
		{name: "login", failVerb: "login", wantErr: ErrRegistryLoginFailed, want: []string{promoteCommands[0], promoteCommands[4]}},
		{name: "pull", failVerb: "pull", wantErr: ErrPullImageFailed, want: []string{promoteCommands[0], promoteCommands[1], promoteCommands[4]}},
		{name: "tag", failVerb: "tag", wantErr: ErrTagImageFailed, want: []string{promoteCommands[0], promoteCommands[1], promoteCommands[2], promoteCommands[4]}},
		{name: "push", failVerb: "push", wantErr: ErrPushImageFailed, want: promoteCommands},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeSWR()
			api.listErr = notFound()
			mock := &MockExecutor{
				CommandFunc: func(spec ExecSpec) *MockCommand {
					cmd := &MockCommand{Args: spec.Args}
					if spec.Name == "docker" && len(spec.Args) > 0 && spec.Args[0] == tt.failVerb {
						cmd.OutputData = []byte("denied")
						cmd.RunErr = errors.New("exit status 1")
					}
					return cmd
				},
			}

			result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.False(t, result.Promoted)
			assertCommands(t, mock, tt.want)
		})
	}
}

func TestPromote_CleanupFailure(t *testing.T) {
	api := newFakeSWR()
	mock := &MockExecutor{
		CommandFunc: func(spec ExecSpec) *MockCommand {
			cmd := &MockCommand{Args: spec.Args}
			if spec.Name == "rm" {
				cmd.RunErr = errors.New("exit status 1")
			}
			return cmd
		},
	}

	result, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoveCredentialFailed))
	assert.True(t, result.Promoted, "image was pushed before cleanup failed")
}

func TestPromote_ListTransportError(t *testing.T) {
	api := newFakeSWR()
	api.listErr = errors.New("dial tcp: lookup swr-api.ap-southeast-1.myhuaweicloud.com: no such host")
	mock := &MockExecutor{}

	_, err := newTestPromoter(api, mock).Promote(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrListTagsFailed))
	assert.Equal(t, errx.CodeRegistry, errx.CodeOf(err))
	assert.Empty(t, api.createReqs, "transport failure is not treated as a missing repository")
	assert.Zero(t, api.secretReqs)
	assertCommands(t, mock, nil)
}

func TestPromote_CreateRepositoryFailureContinues(t *testing.T) {
	api := newFakeSWR()
	api.listErr = notFound()
	api.createErr = &sdkerr.ServiceResponseError{StatusCode: http.StatusConflict, ErrorMessage: "repository already exists"}
	mock := &MockExecutor{}
	core, logs := observer.New(zap.WarnLevel)
	engine := NewDockerCLIEngine(mock, testDockerCfg, zap.NewNop())

	result, err := NewPromoter(swr.New(api), engine, &fakeReporter{}, zap.New(core)).Promote(context.Background(), testConfig())
	require.NoError(t, err)
	assert.False(t, result.RepositoryCreated)
	assert.True(t, result.Promoted)
	assertCommands(t, mock, promoteCommands)

	entries := logs.FilterMessage("Failed to create repository").All()
	require.Len(t, entries, 1)
	var wrapped error
	for _, field := range entries[0].Context {
		if field.Key == "error" {
			wrapped, _ = field.Interface.(error)
		}
	}
	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, ErrCreateRepositoryFailed))
	assert.Equal(t, errx.CodeRegistry, errx.CodeOf(wrapped))
	assert.Equal(t, "team_app", errxContext(t, wrapped)["repository"])
}

func errxContext(t *testing.T, err error) map[string]any {
	t.Helper()
	var e *errx.Error
	require.True(t, errors.As(err, &e))
	return e.Context()
}

func TestPromote_MasksRegistryPassword(t *testing.T) {
	api := newFakeSWR()
	reporter := &fakeReporter{}
	engine := NewDockerCLIEngine(&MockExecutor{}, testDockerCfg, zap.NewNop())

	result, err := NewPromoter(swr.New(api), engine, reporter, zap.NewNop()).Promote(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, result.LoggedIn)
	assert.Equal(t, []string{"s3cret"}, reporter.masks)
}

func TestPromote_UnknownStatusStops(t *testing.T) {
	registry := &stubRegistry{status: swr.TagUnknown}
	mock := &MockExecutor{}
	engine := NewDockerCLIEngine(mock, testDockerCfg, zap.NewNop())

	result, err := NewPromoter(registry, engine, &fakeReporter{}, zap.NewNop()).Promote(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrListTagsFailed))
	assert.False(t, result.Promoted)
	assert.Zero(t, registry.createCalls)
	assert.Zero(t, registry.loginCalls)
	assertCommands(t, mock, nil)
}

func TestPromote_NormalizationIsConsistent(t *testing.T) {
	api := newFakeSWR()
	api.listErr = notFound()
	mock := &MockExecutor{}
	cfg := testConfig()
	cfg.Repository = "org/team/app"

	result, err := newTestPromoter(api, mock).Promote(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, api.listReqs, 1)
	require.Len(t, api.createReqs, 1)
	assert.Equal(t, "org_team_app", api.listReqs[0].Repository)
	assert.Equal(t, "v1", *api.listReqs[0].Tag)
	assert.Equal(t, "org_team_app", api.createReqs[0].Body.Repository)
	assert.Equal(t, testRegistry+"/myns/org_team_app:v1", result.Image)
	assert.Contains(t, mock.CommandLines(), "docker pull org/team/app:v1")
	assert.Contains(t, mock.CommandLines(), "docker push "+testRegistry+"/myns/org_team_app:v1")
}

func TestPromote_InvalidReference(t *testing.T) {
	api := newFakeSWR()
	mock := &MockExecutor{}
	cfg := testConfig()
	cfg.Repository = "Team/App"

	_, err := newTestPromoter(api, mock).Promote(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImageReference))
	assert.Empty(t, api.listReqs)
	assertCommands(t, mock, nil)
}

func TestPromote_Canceled(t *testing.T) {
	t.Run("before lookup", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		api := newFakeSWR()
		mock := &MockExecutor{}

		_, err := newTestPromoter(api, mock).Promote(ctx, testConfig())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPromoteCanceled))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, errx.CodePromote, errx.CodeOf(err))
		assert.Empty(t, api.listReqs)
	})

	t.Run("during pull", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		api := newFakeSWR()
		mock := &MockExecutor{
			CommandFunc: func(spec ExecSpec) *MockCommand {
				cmd := &MockCommand{Args: spec.Args}
				if contains(spec.Args, "pull") {
					cmd.RunFunc = func() error {
						cancel()
						return errors.New("signal: killed")
					}
				}
				return cmd
			},
		}

		_, err := newTestPromoter(api, mock).Promote(ctx, testConfig())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPromoteCanceled))
		assert.True(t, errors.Is(err, ErrPullImageFailed))
		assert.Equal(t, "rm -f "+testDockerCfg, mock.LastCommand().String(), "cleanup runs after cancellation")
	})
}

func newPromoteTestManager(t *testing.T, api *fakeSWR, mock *MockExecutor) (*PromoteManager, *fakeReporter) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("DOCKER_CONFIG", "/home/runner/.docker")
	reporter := &fakeReporter{}
	m := NewPromoteManager(mock, zap.NewNop(), reporter)
	m.newRegistry = func(*Config) (Registry, error) { return swr.New(api), nil }
	return m, reporter
}

func withTestFlags(t *testing.T, cmd *cobra.Command) *cobra.Command {
	t.Helper()
	setFlags(t, cmd, completeFlags())
	cmd.SetContext(context.Background())
	return cmd
}

func TestPromoteManager_RunPromote(t *testing.T) {
	api := newFakeSWR()
	api.listErr = notFound()
	mock := &MockExecutor{}
	m, reporter := newPromoteTestManager(t, api, mock)

	result, err := m.RunPromote(withTestFlags(t, m.NewPromoteCmd()))
	require.NoError(t, err)

	assert.True(t, result.Promoted)
	assert.Equal(t, []string{"SK", "s3cret"}, reporter.masks)
	assert.Equal(t, map[string]string{"image": testDestination, "promoted": "true"}, reporter.outputs)
	assertCommands(t, mock, promoteCommands)
}

func TestPromoteManager_RunPromoteNoop(t *testing.T) {
	api := newFakeSWR()
	api.tags = 1
	m, reporter := newPromoteTestManager(t, api, &MockExecutor{})

	_, err := m.RunPromote(withTestFlags(t, m.NewPromoteCmd()))
	require.NoError(t, err)
	assert.Equal(t, "false", reporter.outputs["promoted"])
}

func TestPromoteManager_MissingConfig(t *testing.T) {
	api := newFakeSWR()
	mock := &MockExecutor{}
	m, _ := newPromoteTestManager(t, api, mock)
	cmd := m.NewPromoteCmd()
	cmd.SetContext(context.Background())

	_, err := m.RunPromote(cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldRequired))
	assert.Empty(t, api.listReqs)
	assert.Empty(t, mock.Commands)
}

func TestPromoteManager_RegistryFactoryError(t *testing.T) {
	m, _ := newPromoteTestManager(t, newFakeSWR(), &MockExecutor{})
	m.newRegistry = func(*Config) (Registry, error) {
		return nil, newWithSentinel(ErrRegistryClientFailed, "failed to create registry client: bad ak")
	}

	_, err := m.RunPromote(withTestFlags(t, m.NewPromoteCmd()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistryClientFailed))
}

func TestPromoteManager_Engines(t *testing.T) {
	m, _ := newPromoteTestManager(t, newFakeSWR(), &MockExecutor{})

	for _, name := range []string{EngineCLI, EngineCrane} {
		cfg := testConfig()
		cfg.Engine = name
		engine, err := m.newEngine(cfg)
		require.NoError(t, err)
		assert.NotNil(t, engine)
	}

	cfg := testConfig()
	cfg.Engine = "podman"
	_, err := m.newEngine(cfg)
	assert.True(t, errors.Is(err, ErrUnknownEngine))
}
