// Package swr talks to the Huawei Cloud SoftWare Repository for Container
// (SWR) control plane and derives the identifiers the promoter works with.
package swr

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// DefaultDomain is the public Huawei Cloud endpoint suffix.
const DefaultDomain = "myhuaweicloud.com"

// Target is the destination of a promotion. Repository is always stored in
// its normalized form, so every call built from a Target agrees on the name.
type Target struct {
	Region     string
	Namespace  string
	Repository string
	Tag        string
}

// NewTarget builds a Target, normalizing repository on the way in.
func NewTarget(region, namespace, repository, tag string) Target {
	return Target{
		Region:     region,
		Namespace:  namespace,
		Repository: NormalizeRepository(repository),
		Tag:        tag,
	}
}

// NormalizeRepository flattens nested repository paths; SWR repositories
// cannot contain "/".
func NormalizeRepository(repository string) string {
	return strings.ReplaceAll(repository, "/", "_")
}

// ManagementEndpoint returns the SWR API endpoint for region.
func ManagementEndpoint(region string) string {
	return fmt.Sprintf("https://swr-api.%s.%s", region, DefaultDomain)
}

// RegistryHost returns the image registry host for region.
func RegistryHost(region string) string {
	return fmt.Sprintf("swr.%s.%s", region, DefaultDomain)
}

// DestinationImage composes registry/namespace/normalized_repository:tag.
func DestinationImage(region, namespace, repository, tag string) string {
	return NewTarget(region, namespace, repository, tag).Image()
}

// ManagementEndpoint returns the SWR API endpoint for the target's region.
func (t Target) ManagementEndpoint() string { return ManagementEndpoint(t.Region) }

// Registry returns the image registry host for the target's region.
func (t Target) Registry() string { return RegistryHost(t.Region) }

// Image returns the full destination image reference.
func (t Target) Image() string {
	return fmt.Sprintf("%s/%s/%s:%s", t.Registry(), t.Namespace, t.Repository, t.Tag)
}

// Validate checks that the destination reference is a well-formed,
// fully-qualified tag.
func (t Target) Validate() error {
	if _, err := name.NewTag(t.Image(), name.StrictValidation); err != nil {
		return fmt.Errorf("invalid destination image %q: %w", t.Image(), err)
	}
	return nil
}

// SourceImage returns the un-normalized source reference repository:tag.
func SourceImage(repository, tag string) string {
	return repository + ":" + tag
}

// ValidateSource checks that the source reference parses.
func ValidateSource(ref string) error {
	if _, err := name.ParseReference(ref); err != nil {
		return fmt.Errorf("invalid source image %q: %w", ref, err)
	}
	return nil
}
