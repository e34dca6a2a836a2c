package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	servicesKey  = "services"
	imageKey     = "image"
	labelsKey    = "labels"
	discoveryKey = "use_discovery"
)

// ErrNoServices is returned for manifests without a
// top-level services mapping.
var ErrNoServices = errors.New(
	"no services are defined in this compose file",
)

// Document is a decoded compose manifest.
type Document struct {
	Content map[string]interface{}
}

// Decode reads a single YAML document from in and checks
// it holds a services mapping.
func Decode(in io.Reader) (*Document, error) {
	const errCtx = "decoding compose file"

	var content map[string]interface{}

	err := yaml.NewDecoder(in).Decode(&content)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf(
			"%s: decoding yaml: %w", errCtx, err,
		)
	}

	doc := &Document{Content: content}

	if _, err := doc.Services(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return doc, nil
}

// Load reads the manifest at path.
func Load(path string) (*Document, error) {
	const errCtx = "loading compose file"

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	doc, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return doc, nil
}

// Services returns the services mapping. An empty
// "services:" value is replaced by an empty mapping.
func (d *Document) Services() (map[string]interface{}, error) {
	val, ok := d.Content[servicesKey]
	if !ok {
		return nil, ErrNoServices
	}

	if val == nil {
		services := make(map[string]interface{})
		d.Content[servicesKey] = services

		return services, nil
	}

	services, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf(
			"%w: services is a %T, not a mapping",
			ErrNoServices, val,
		)
	}

	return services, nil
}

// Encode writes the document as YAML to out.
func (d *Document) Encode(out io.Writer) error {
	const errCtx = "encoding compose file"

	buf, err := yaml.Marshal(d.Content)
	if err != nil {
		return fmt.Errorf(
			"%s: marshaling: %w", errCtx, err,
		)
	}

	if _, err := out.Write(buf); err != nil {
		return fmt.Errorf(
			"%s: writing: %w", errCtx, err,
		)
	}

	return nil
}

// Save overwrites path with the encoded document. The
// write is not atomic.
func (d *Document) Save(path string) error {
	const errCtx = "saving compose file"

	var buf bytes.Buffer

	if err := d.Encode(&buf); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	//nolint:gosec // compose files are world readable
	if err := os.WriteFile(
		path, buf.Bytes(), 0o644,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return nil
}

// Apply points serviceName at image. A missing service
// is created with the use_discovery label; an existing
// one only has its image replaced. services is updated
// in place and returned.
func Apply(
	serviceName string,
	services map[string]interface{},
	image string,
) map[string]interface{} {
	existing, found := services[serviceName]
	if !found {
		services[serviceName] = map[string]interface{}{
			imageKey: image,
			labelsKey: map[string]interface{}{
				discoveryKey: true,
			},
		}

		return services
	}

	service, ok := existing.(map[string]interface{})
	if !ok {
		// "web:" with no body decodes to nil.
		service = make(map[string]interface{})
		services[serviceName] = service
	}

	service[imageKey] = image

	return services
}
