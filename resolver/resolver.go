package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/byte4ever/compose_updater/registry"
)

var (
	// ErrMissingInput is returned when neither an image
	// URL nor a repository name was supplied.
	ErrMissingInput = errors.New(
		"missing input: an image url, a repository name " +
			"or a parameters file is required",
	)

	// ErrNoImagesFound is returned when the repository
	// holds no image at all.
	ErrNoImagesFound = errors.New("no images found")

	// ErrNoRegistry is returned when a lookup is needed
	// but the Resolver was built without a registry.
	ErrNoRegistry = errors.New("no registry configured")
)

// Registry is the registry lookup the resolver needs.
// *registry.Client implements it.
type Registry interface {
	RepositoryURI(ctx context.Context, name string) (string, error)
	ListImages(ctx context.Context, name string) ([]registry.Image, error)
}

// Input carries the raw resolution inputs. Fields are
// consulted in order: ImageURL, Repository with Tag,
// Repository alone.
type Input struct {
	ImageURL   string
	Repository string
	Tag        string
}

// Resolver resolves image references against a
// registry.
type Resolver struct {
	reg Registry
}

// New returns a Resolver backed by reg. reg may be nil
// when only explicit image URLs will be resolved.
func New(reg Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve returns the image reference selected by in.
func (r *Resolver) Resolve(
	ctx context.Context,
	in Input,
) (string, error) {
	const errCtx = "resolving image"

	switch {
	case in.ImageURL != "":
		slog.Info("using explicit image url", "image", in.ImageURL)

		return in.ImageURL, nil

	case in.Repository != "" && in.Tag != "":
		ref, err := r.Tagged(ctx, in.Repository, in.Tag)
		if err != nil {
			return "", fmt.Errorf("%s: %w", errCtx, err)
		}

		return ref, nil

	case in.Repository != "":
		ref, err := r.Latest(ctx, in.Repository)
		if err != nil {
			return "", fmt.Errorf("%s: %w", errCtx, err)
		}

		return ref, nil

	default:
		return "", fmt.Errorf("%s: %w", errCtx, ErrMissingInput)
	}
}

// Tagged returns "<uri>:<tag>" for the repository.
func (r *Resolver) Tagged(
	ctx context.Context,
	repo string,
	tag string,
) (string, error) {
	const errCtx = "resolving tagged image"

	uri, err := r.repositoryURI(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return WithTag(uri, tag), nil
}

// Digested returns "<uri>@<digest>" for the repository.
// Stray "@" around dgst are dropped.
func (r *Resolver) Digested(
	ctx context.Context,
	repo string,
	dgst string,
) (string, error) {
	const errCtx = "resolving digested image"

	uri, err := r.repositoryURI(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return WithDigest(uri, dgst), nil
}

// Latest returns "<uri>@<digest>" for the image picked
// by SelectLatest. The repository URI is looked up first
// so an unknown repository fails before images are
// listed.
func (r *Resolver) Latest(
	ctx context.Context,
	repo string,
) (string, error) {
	const errCtx = "resolving latest image"

	uri, err := r.repositoryURI(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	images, err := r.reg.ListImages(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	dgst, err := SelectLatest(images)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, repo, err,
		)
	}

	slog.Info(
		"selected latest image",
		"repository", repo,
		"digest", dgst.String(),
	)

	return WithDigest(uri, dgst.String()), nil
}

func (r *Resolver) repositoryURI(
	ctx context.Context,
	repo string,
) (string, error) {
	if r.reg == nil {
		return "", ErrNoRegistry
	}

	return r.reg.RepositoryURI(ctx, repo)
}

// SelectLatest picks the image to deploy from images in
// registry order. The first image only sets the
// reference push time. The first following image pushed
// strictly later wins and ends the scan. When none is
// later, the last image is returned. This is not a
// maximum search.
func SelectLatest(images []registry.Image) (digest.Digest, error) {
	var (
		mostRecent time.Time
		tracked    bool
	)

	for _, img := range images {
		if !tracked {
			mostRecent = img.PushedAt
			tracked = true

			continue
		}

		if img.PushedAt.After(mostRecent) {
			return img.Digest, nil
		}
	}

	if !tracked {
		return "", ErrNoImagesFound
	}

	return images[len(images)-1].Digest, nil
}

// WithTag joins a repository URI and a tag.
func WithTag(uri string, tag string) string {
	return uri + ":" + tag
}

// WithDigest joins a repository URI and a digest,
// dropping any leading or trailing "@" from dgst.
func WithDigest(uri string, dgst string) string {
	return uri + "@" + strings.Trim(dgst, "@")
}
