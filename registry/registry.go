package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/smithy-go"
	"github.com/opencontainers/go-digest"
)

// ErrRepositoryNotFound is returned when no repository
// carries the requested name.
var ErrRepositoryNotFound = errors.New("repository not found")

// Error wraps a failure of the underlying registry API.
// Unwrap yields the SDK error untouched.
type Error struct {
	// Op names the registry operation that failed.
	Op string
	// Code is the service error code, when the SDK
	// reported one.
	Code string
	// Err is the SDK error.
	Err error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf(
			"registry: %s (%s): %v", e.Op, e.Code, e.Err,
		)
	}

	return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	re := &Error{Op: op, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		re.Code = apiErr.ErrorCode()
	}

	return re
}

// Image describes one image stored in a repository.
type Image struct {
	Digest   digest.Digest
	PushedAt time.Time
	Tags     []string
}

// ecrAPI is the subset of the ECR client used here. The
// SDK ships no mock, tests provide their own.
type ecrAPI interface {
	ecr.DescribeRepositoriesAPIClient
	ecr.DescribeImagesAPIClient
}

// Client queries an ECR registry.
type Client struct {
	api        ecrAPI
	registryID *string
}

// NewClient builds a Client from cfg. No network call
// is made until a lookup is requested.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	const errCtx = "creating registry client"

	awsCfg, err := cfg.awsConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, newError("load aws config", err),
		)
	}

	var ecrOpts []func(*ecr.Options)

	if cfg.Endpoint != "" {
		ecrOpts = append(ecrOpts, func(o *ecr.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return newWithAPI(
		ecr.NewFromConfig(awsCfg, ecrOpts...),
		cfg.RegistryID,
	), nil
}

func newWithAPI(api ecrAPI, registryID string) *Client {
	cl := &Client{api: api}

	if registryID != "" {
		cl.registryID = aws.String(registryID)
	}

	return cl
}

// RepositoryURI returns the URI of the repository named
// name. The first exact match wins.
func (c *Client) RepositoryURI(
	ctx context.Context,
	name string,
) (string, error) {
	const errCtx = "resolving repository uri"

	pager := ecr.NewDescribeRepositoriesPaginator(
		c.api,
		&ecr.DescribeRepositoriesInput{
			RegistryId: c.registryID,
		},
	)

	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w",
				errCtx, newError("describe repositories", err),
			)
		}

		for _, repo := range page.Repositories {
			if aws.ToString(repo.RepositoryName) != name {
				continue
			}

			uri := aws.ToString(repo.RepositoryUri)

			slog.Info(
				"found repository",
				"name", name,
				"uri", uri,
			)

			return uri, nil
		}
	}

	return "", fmt.Errorf(
		"%s: %w: %s", errCtx, ErrRepositoryNotFound, name,
	)
}

// ListImages returns every image of the repository in
// the order the registry reports them.
func (c *Client) ListImages(
	ctx context.Context,
	name string,
) ([]Image, error) {
	const errCtx = "listing images"

	pager := ecr.NewDescribeImagesPaginator(
		c.api,
		&ecr.DescribeImagesInput{
			RepositoryName: aws.String(name),
			RegistryId:     c.registryID,
		},
	)

	var images []Image

	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w",
				errCtx, name, newError("describe images", err),
			)
		}

		for _, det := range page.ImageDetails {
			images = append(images, Image{
				Digest:   digest.Digest(aws.ToString(det.ImageDigest)),
				PushedAt: aws.ToTime(det.ImagePushedAt),
				Tags:     det.ImageTags,
			})
		}
	}

	slog.Info(
		"listed images",
		"repository", name,
		"count", len(images),
	)

	return images, nil
}
