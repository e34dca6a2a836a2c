// Package main provides the compose_updater CLI that
// points one service of a compose file at a container
// image resolved from a URL, an ECR repository or a
// parameters file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/compose_updater/registry"
	"github.com/byte4ever/compose_updater/updater"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "running compose_updater"

	regCfg, err := registry.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var (
		cfg        updater.Config
		jsonOutput bool
	)

	flag.StringVar(
		&cfg.SourceFile, "source-file", "",
		"Path to the source compose file (required)",
	)
	flag.StringVar(
		&cfg.OutputFile, "output-file", "",
		"Path to the updated compose file "+
			"(default: source file)",
	)
	flag.StringVar(
		&cfg.ServiceName, "service-name", "",
		"Name of the service to update or add",
	)
	flag.StringVar(
		&cfg.ImageURL, "image-url", "",
		"The new docker image URL",
	)
	flag.StringVar(
		&cfg.Repository, "ecr-repository-name", "",
		"Name of the ECR repository; the latest "+
			"pushed image is used without --image-tag",
	)
	flag.StringVar(
		&cfg.Tag, "image-tag", "",
		"Docker image tag to use from the ECR repository",
	)
	flag.StringVar(
		&cfg.ParametersFile, "parameters-file", "",
		"YAML file with service_name, repo_name "+
			"and optional image_tag",
	)
	flag.BoolVar(
		&cfg.DryRun, "dry-run", false,
		"Resolve and patch without writing",
	)
	flag.BoolVar(
		&jsonOutput, "json", false,
		"Print the result as JSON on stdout",
	)

	// Registry session flags override the
	// COMPOSEX_REGISTRY_* environment.
	flag.StringVar(
		&regCfg.Region, "region", regCfg.Region,
		"AWS region of the registry",
	)
	flag.StringVar(
		&regCfg.Profile, "profile", regCfg.Profile,
		"AWS shared config profile",
	)
	flag.StringVar(
		&regCfg.Endpoint, "endpoint-url", regCfg.Endpoint,
		"Override the ECR endpoint URL",
	)
	flag.StringVar(
		&regCfg.RegistryID, "registry-id", regCfg.RegistryID,
		"AWS account ID owning the repositories",
	)

	flag.Parse()

	if cfg.SourceFile == "" {
		return fmt.Errorf(
			"%s: --source-file is required", errCtx,
		)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	// Only build a registry client when a lookup can
	// happen.
	if cfg.ImageURL == "" {
		cl, err := registry.NewClient(ctx, regCfg)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		cfg.Registry = cl
	}

	res, err := updater.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !jsonOutput {
		return nil
	}

	buf, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf(
			"%s: encoding result: %w", errCtx, err,
		)
	}

	if _, err := os.Stdout.Write(
		append(buf, '\n'),
	); err != nil {
		return fmt.Errorf(
			"%s: writing to stdout: %w", errCtx, err,
		)
	}

	return nil
}
