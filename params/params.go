package params

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/compose_updater/resolver"
)

const (
	serviceNameKey = "service_name"
	repoNameKey    = "repo_name"
	imageTagKey    = "image_tag"
)

// ErrMissingSetting is returned when a required key is
// absent from the parameters file.
var ErrMissingSetting = errors.New("missing setting")

// Parameters holds the settings read from a parameters
// file. ImageTag is empty when the file has none.
type Parameters struct {
	ServiceName string
	Repository  string
	ImageTag    string
}

// Load reads the parameters file at path.
func Load(path string) (*Parameters, error) {
	const errCtx = "loading parameters"

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	pa, err := Decode(bytes.NewReader(raw), envMap())
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return pa, nil
}

// Decode reads parameters from in and expands ${NAME}
// references against vars.
func Decode(
	in io.Reader,
	vars map[string]interface{},
) (*Parameters, error) {
	const errCtx = "decoding parameters"

	var settings map[string]interface{}

	err := yaml.NewDecoder(in).Decode(&settings)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf(
			"%s: decoding yaml: %w", errCtx, err,
		)
	}

	if missing := missingKeys(
		settings, serviceNameKey, repoNameKey,
	); len(missing) > 0 {
		return nil, fmt.Errorf(
			"%s: %w: %s",
			errCtx, ErrMissingSetting, strings.Join(missing, ", "),
		)
	}

	return &Parameters{
		ServiceName: scalar(settings[serviceNameKey], vars),
		Repository:  scalar(settings[repoNameKey], vars),
		ImageTag:    scalar(settings[imageTagKey], vars),
	}, nil
}

// IsDigest reports whether the tag is used as a digest.
func (p *Parameters) IsDigest() bool {
	return strings.Contains(p.ImageTag, "sha")
}

// Resolve returns the image reference described by the
// parameters.
func (p *Parameters) Resolve(
	ctx context.Context,
	res *resolver.Resolver,
) (string, error) {
	const errCtx = "resolving parameters"

	var (
		ref string
		err error
	)

	switch {
	case p.ImageTag == "":
		ref, err = res.Latest(ctx, p.Repository)
	case p.IsDigest():
		ref, err = res.Digested(ctx, p.Repository, p.ImageTag)
	default:
		ref, err = res.Tagged(ctx, p.Repository, p.ImageTag)
	}

	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return ref, nil
}

// LoadFrom loads the parameters file at path and
// resolves it, returning the service name and the image
// reference.
func LoadFrom(
	ctx context.Context,
	path string,
	res *resolver.Resolver,
) (string, string, error) {
	pa, err := Load(path)
	if err != nil {
		return "", "", err
	}

	ref, err := pa.Resolve(ctx, res)
	if err != nil {
		return "", "", err
	}

	return pa.ServiceName, ref, nil
}

func missingKeys(
	settings map[string]interface{},
	keys ...string,
) []string {
	var missing []string

	for _, key := range keys {
		if _, ok := settings[key]; !ok {
			missing = append(missing, key)
		}
	}

	sort.Strings(missing)

	return missing
}

// scalar renders a YAML scalar as a string, so that
// "image_tag: 42" yields "42". nil yields "".
func scalar(
	val interface{},
	vars map[string]interface{},
) string {
	if val == nil {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return fmt.Sprint(val)
	}

	return fasttemplate.ExecuteStringStd(str, "${", "}", vars)
}

func envMap() map[string]interface{} {
	vars := make(map[string]interface{})

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			vars[parts[0]] = parts[1]
		}
	}

	return vars
}
