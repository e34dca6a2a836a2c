package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/compose_updater/compose"
	"github.com/byte4ever/compose_updater/params"
	"github.com/byte4ever/compose_updater/resolver"
)

// Config holds all settings for one update run.
type Config struct {
	// SourceFile is the compose manifest to read.
	SourceFile string

	// OutputFile receives the patched manifest. Empty
	// means SourceFile is overwritten.
	OutputFile string

	// ServiceName is the service to update. When empty
	// the parameters file must provide it.
	ServiceName string

	// ImageURL is used verbatim when set.
	ImageURL string

	// Repository and Tag select an image from the
	// registry. Without Tag the latest image is used.
	Repository string
	Tag        string

	// ParametersFile is read only when neither ImageURL
	// nor Repository is set.
	ParametersFile string

	// DryRun skips writing the manifest.
	DryRun bool

	// Registry serves repository and image lookups. It
	// may be nil when ImageURL is set.
	Registry resolver.Registry
}

// Result describes a completed run.
type Result struct {
	ServiceName string `json:"service_name"`
	Image       string `json:"image"`
	Destination string `json:"destination"`
	Created     bool   `json:"created"`
	Written     bool   `json:"written"`
}

// Run executes the update described by cfg.
func Run(ctx context.Context, cfg Config) (Result, error) {
	const errCtx = "updating compose file"

	if cfg.SourceFile == "" {
		return Result{}, fmt.Errorf(
			"%s: source file: %w",
			errCtx, resolver.ErrMissingInput,
		)
	}

	// The manifest is checked before any registry
	// call.
	doc, err := compose.Load(cfg.SourceFile)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	services, err := doc.Services()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	serviceName, image, err := resolveImage(ctx, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	_, exists := services[serviceName]
	compose.Apply(serviceName, services, image)

	res := Result{
		ServiceName: serviceName,
		Image:       image,
		Destination: destination(cfg),
		Created:     !exists,
	}

	if cfg.DryRun {
		slog.Info(
			"dry run: skipping write",
			"service", serviceName,
			"image", image,
		)

		return res, nil
	}

	if err := doc.Save(res.Destination); err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	res.Written = true

	slog.Info(
		"updated service image",
		"service", serviceName,
		"image", image,
		"created", res.Created,
		"file", res.Destination,
	)

	return res, nil
}

// resolveImage returns the service name and image
// reference. Explicit inputs win over the parameters
// file; an explicit service name wins over the one in
// the parameters file.
func resolveImage(
	ctx context.Context,
	cfg Config,
) (string, string, error) {
	const errCtx = "resolving service image"

	res := resolver.New(cfg.Registry)

	if cfg.ImageURL == "" &&
		cfg.Repository == "" &&
		cfg.ParametersFile != "" {
		name, image, err := params.LoadFrom(
			ctx, cfg.ParametersFile, res,
		)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", errCtx, err)
		}

		if cfg.ServiceName != "" {
			name = cfg.ServiceName
		}

		if name == "" {
			return "", "", fmt.Errorf(
				"%s: service name: %w",
				errCtx, resolver.ErrMissingInput,
			)
		}

		return name, image, nil
	}

	if cfg.ServiceName == "" {
		return "", "", fmt.Errorf(
			"%s: service name: %w",
			errCtx, resolver.ErrMissingInput,
		)
	}

	image, err := res.Resolve(ctx, resolver.Input{
		ImageURL:   cfg.ImageURL,
		Repository: cfg.Repository,
		Tag:        cfg.Tag,
	})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg.ServiceName, image, nil
}

func destination(cfg Config) string {
	if cfg.OutputFile != "" {
		return cfg.OutputFile
	}

	return cfg.SourceFile
}
