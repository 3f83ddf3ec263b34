package swr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/sdkerr"
	swrsdk "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/swr/v2"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/swr/v2/model"

	"swr-promote/pkg/errx"
)

// API is the subset of the SWR SDK client the promoter uses.
// *swrsdk.SwrClient satisfies it.
type API interface {
	ListRepositoryTags(request *model.ListRepositoryTagsRequest) (*model.ListRepositoryTagsResponse, error)
	CreateRepo(request *model.CreateRepoRequest) (*model.CreateRepoResponse, error)
	CreateSecret(request *model.CreateSecretRequest) (*model.CreateSecretResponse, error)
}

// TagStatus is the outcome of a destination tag lookup.
type TagStatus int

const (
	// TagUnknown is returned alongside every lookup error.
	TagUnknown TagStatus = iota
	// TagMissing means the repository exists but the tag does not.
	TagMissing
	// TagFound means the destination tag already exists.
	TagFound
	// RepositoryMissing means the repository itself does not exist.
	RepositoryMissing
)

func (s TagStatus) String() string {
	switch s {
	case TagFound:
		return "found"
	case TagMissing:
		return "tag-missing"
	case RepositoryMissing:
		return "repository-missing"
	case TagUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("TagStatus(%d)", int(s))
	}
}

// Credentials are the account keys used to sign SWR API requests.
type Credentials struct {
	AccessKey string
	SecretKey string
	ProjectID string
}

// Client wraps the SWR API with the promoter's operations.
type Client struct {
	api API
}

// New returns a Client over an existing API implementation.
func New(api API) *Client {
	return &Client{api: api}
}

// NewClient builds an authenticated SDK client for endpoint.
func NewClient(creds Credentials, endpoint string) (*Client, error) {
	auth, err := basic.NewCredentialsBuilder().
		WithAk(creds.AccessKey).
		WithSk(creds.SecretKey).
		WithProjectId(creds.ProjectID).
		SafeBuild()
	if err != nil {
		return nil, errx.WrapAuth(fmt.Sprintf("invalid credentials: %v", err), err)
	}

	hc, err := swrsdk.SwrClientBuilder().
		WithEndpoints([]string{endpoint}).
		WithCredential(auth).
		SafeBuild()
	if err != nil {
		return nil, errx.WrapRegistry(fmt.Sprintf("build swr client: %v", err), err).
			WithContext("endpoint", endpoint)
	}
	return New(swrsdk.NewSwrClient(hc)), nil
}

// TagStatus looks up target's tag. A 404 from the service maps to
// RepositoryMissing; any other failure is returned as an error.
func (c *Client) TagStatus(ctx context.Context, target Target) (TagStatus, error) {
	if err := ctx.Err(); err != nil {
		return TagUnknown, err
	}
	tag := target.Tag
	resp, err := c.api.ListRepositoryTags(&model.ListRepositoryTagsRequest{
		Namespace:  target.Namespace,
		Repository: target.Repository,
		Tag:        &tag,
	})
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return RepositoryMissing, nil
		}
		return TagUnknown, errx.WrapRegistry(fmt.Sprintf("list tags of %s/%s: %v", target.Namespace, target.Repository, err), err).
			WithContextMap(map[string]any{"namespace": target.Namespace, "repository": target.Repository, "tag": target.Tag})
	}
	if resp != nil && resp.Body != nil && len(*resp.Body) > 0 {
		return TagFound, nil
	}
	return TagMissing, nil
}

// CreateRepository creates target's repository in its namespace.
func (c *Client) CreateRepository(ctx context.Context, target Target, public bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.CreateRepo(&model.CreateRepoRequest{
		Namespace: target.Namespace,
		Body: &model.CreateRepoRequestBody{
			Repository: target.Repository,
			IsPublic:   public,
		},
	})
	if err != nil {
		return errx.WrapRegistry(fmt.Sprintf("create repository %s/%s: %v", target.Namespace, target.Repository, err), err).
			WithContextMap(map[string]any{"namespace": target.Namespace, "repository": target.Repository, "status": StatusCode(err)})
	}
	return nil
}

// IssueLogin requests a temporary login secret. Service errors are folded
// into the returned StatusCode so callers can treat any non-200 the same
// way; only transport-level failures are returned as errors.
func (c *Client) IssueLogin(ctx context.Context) (LoginSecret, error) {
	if err := ctx.Err(); err != nil {
		return LoginSecret{}, err
	}
	resp, err := c.api.CreateSecret(&model.CreateSecretRequest{})
	if err != nil {
		if code := StatusCode(err); code != 0 {
			return LoginSecret{StatusCode: code}, nil
		}
		return LoginSecret{}, errx.WrapAuth(fmt.Sprintf("issue login secret: %v", err), err)
	}

	secret := LoginSecret{StatusCode: resp.HttpStatusCode}
	if resp.XSwrDockerlogin != nil {
		secret.Command = *resp.XSwrDockerlogin
	}
	if len(resp.Auths) > 0 {
		secret.Auths = make(map[string]string, len(resp.Auths))
		for host, info := range resp.Auths {
			if info.Auth != "" {
				secret.Auths[host] = info.Auth
			}
		}
	}
	return secret, nil
}

// StatusCode returns the HTTP status carried by an SDK service error, or 0.
func StatusCode(err error) int {
	var svcErr *sdkerr.ServiceResponseError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode
	}
	return 0
}
