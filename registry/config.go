package registry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by
// ConfigFromEnv.
const EnvPrefix = "COMPOSEX_REGISTRY_"

// Config holds the session settings handed to the AWS
// SDK. Empty fields fall back to the SDK default chain
// (environment, shared config, instance metadata).
type Config struct {
	// Region is the AWS region of the registry.
	Region string `env:"REGION"`

	// Profile selects a shared config profile.
	Profile string `env:"PROFILE"`

	// Endpoint overrides the ECR endpoint URL, for
	// local emulators.
	Endpoint string `env:"ENDPOINT_URL"`

	// AccessKeyID and SecretAccessKey switch to static
	// credentials when both are set.
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	SessionToken    string `env:"SESSION_TOKEN"`

	// RegistryID is the account that owns the
	// repositories. Empty means the caller's account.
	RegistryID string `env:"REGISTRY_ID"`
}

// ConfigFromEnv reads a Config from COMPOSEX_REGISTRY_*
// environment variables.
func ConfigFromEnv() (Config, error) {
	const errCtx = "reading registry config from env"

	var cfg Config

	if err := env.ParseWithOptions(
		&cfg, env.Options{Prefix: EnvPrefix},
	); err != nil {
		return Config{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, nil
}

// awsConfig turns cfg into an aws.Config.
func (cfg Config) awsConfig(
	ctx context.Context,
) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(
			opts,
			awsconfig.WithSharedConfigProfile(cfg.Profile),
		)
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	return awsCfg, nil
}
