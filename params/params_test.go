package params_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/compose_updater/params"
	"github.com/byte4ever/compose_updater/registry"
	"github.com/byte4ever/compose_updater/resolver"
)

type fakeRegistry struct {
	images     []registry.Image
	imageCalls int
}

func (f *fakeRegistry) RepositoryURI(
	_ context.Context,
	name string,
) (string, error) {
	return "123.dkr/" + name, nil
}

func (f *fakeRegistry) ListImages(
	_ context.Context,
	_ string,
) ([]registry.Image, error) {
	f.imageCalls++

	return f.images, nil
}

func decode(
	tb testing.TB,
	input string,
	vars map[string]interface{},
) *params.Parameters {
	tb.Helper()

	pa, err := params.Decode(strings.NewReader(input), vars)
	require.NoError(tb, err)

	return pa
}

func TestDecode_all_keys(t *testing.T) {
	t.Parallel()

	pa := decode(t, `service_name: api
repo_name: myrepo
image_tag: v1.2.3
`, nil)

	assert.Equal(t, &params.Parameters{
		ServiceName: "api",
		Repository:  "myrepo",
		ImageTag:    "v1.2.3",
	}, pa)
	assert.False(t, pa.IsDigest())
}

func TestDecode_missing_settings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		missing string
	}{
		{
			name:    "no repo",
			input:   "service_name: api\n",
			missing: "repo_name",
		},
		{
			name:    "no service",
			input:   "repo_name: myrepo\nimage_tag: v1\n",
			missing: "service_name",
		},
		{
			name:    "empty file",
			input:   "",
			missing: "repo_name, service_name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := params.Decode(strings.NewReader(tc.input), nil)

			require.ErrorIs(t, err, params.ErrMissingSetting)
			assert.ErrorContains(t, err, tc.missing)
		})
	}
}

func TestDecode_non_string_tag(t *testing.T) {
	t.Parallel()

	pa := decode(t, `service_name: api
repo_name: myrepo
image_tag: 42
`, nil)

	assert.Equal(t, "42", pa.ImageTag)
}

func TestDecode_null_tag_means_latest(t *testing.T) {
	t.Parallel()

	pa := decode(t, `service_name: api
repo_name: myrepo
image_tag:
`, nil)

	assert.Empty(t, pa.ImageTag)
}

func TestDecode_expands_variables(t *testing.T) {
	t.Parallel()

	pa := decode(t, `service_name: api-${ENV}
repo_name: myrepo
image_tag: ${GIT_SHA}-${UNKNOWN}
`, map[string]interface{}{
		"ENV":     "prod",
		"GIT_SHA": "abc123",
	})

	assert.Equal(t, "api-prod", pa.ServiceName)
	assert.Equal(t, "abc123-${UNKNOWN}", pa.ImageTag)
}

func TestResolve_tag_classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
	}{
		{tag: "sha256:abcd", want: "123.dkr/myrepo@sha256:abcd"},
		{tag: "@sha256:abcd", want: "123.dkr/myrepo@sha256:abcd"},
		{tag: "sha256:abcd@", want: "123.dkr/myrepo@sha256:abcd"},
		{tag: "v1.2.3", want: "123.dkr/myrepo:v1.2.3"},
		{tag: "latest", want: "123.dkr/myrepo:latest"},
	}

	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			t.Parallel()

			reg := &fakeRegistry{}
			pa := &params.Parameters{
				ServiceName: "api",
				Repository:  "myrepo",
				ImageTag:    tc.tag,
			}

			ref, err := pa.Resolve(
				context.Background(), resolver.New(reg),
			)

			require.NoError(t, err)
			assert.Equal(t, tc.want, ref)
			assert.Zero(t, reg.imageCalls)
		})
	}
}

func TestResolve_no_tag_uses_latest(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{images: []registry.Image{
		{Digest: digest.Digest("sha256:old"), PushedAt: t0},
		{Digest: digest.Digest("sha256:new"), PushedAt: t0.Add(time.Hour)},
	}}

	pa := &params.Parameters{ServiceName: "api", Repository: "myrepo"}

	ref, err := pa.Resolve(context.Background(), resolver.New(reg))

	require.NoError(t, err)
	assert.Equal(t, "123.dkr/myrepo@sha256:new", ref)
	assert.Equal(t, 1, reg.imageCalls)
}

func TestResolve_no_images(t *testing.T) {
	t.Parallel()

	pa := &params.Parameters{ServiceName: "api", Repository: "myrepo"}

	_, err := pa.Resolve(
		context.Background(), resolver.New(&fakeRegistry{}),
	)

	require.ErrorIs(t, err, resolver.ErrNoImagesFound)
}

//nolint:paralleltest // t.Setenv
func TestLoadFrom(t *testing.T) {
	t.Setenv("COMPOSEX_TEST_TAG", "v9")

	path := filepath.Join(t.TempDir(), "params.yml")
	require.NoError(t, os.WriteFile(path, []byte(`service_name: worker
repo_name: jobs
image_tag: ${COMPOSEX_TEST_TAG}
`), 0o600))

	service, ref, err := params.LoadFrom(
		context.Background(), path, resolver.New(&fakeRegistry{}),
	)

	require.NoError(t, err)
	assert.Equal(t, "worker", service)
	assert.Equal(t, "123.dkr/jobs:v9", ref)
}

func TestLoad_missing_file(t *testing.T) {
	t.Parallel()

	_, err := params.Load(filepath.Join(t.TempDir(), "absent.yml"))

	require.ErrorIs(t, err, os.ErrNotExist)
}
