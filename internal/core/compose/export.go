// Package compose exports a built service as a Docker Compose project, so
// an external orchestrator can run the same launch contract that gantry
// runs directly. Emitted projects are validated through the compose-go
// loader before being handed out.
package compose

import (
	"context"
	"fmt"
	"regexp"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/getgantry/gantry/internal/core/recipe"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Export
// =============================================================================

// serviceNamePattern matches a compose service name.
var serviceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// project is the emitted compose document shape.
type project struct {
	Services map[string]service `yaml:"services"`
}

type service struct {
	Image   string   `yaml:"image"`
	Ports   []string `yaml:"ports"`
	Restart string   `yaml:"restart"`
}

// Export renders a single-service compose project for a built image.
//
// The port mapping publishes the declared container port on the same host
// port, bound on all interfaces - the contract the image's CMD already
// encodes. Restart stays "no": restart policy belongs to the orchestrator
// consuming this file, not to the build artifact.
func Export(r recipe.Recipe, image, name string) ([]byte, error) {
	if !serviceNamePattern.MatchString(name) {
		return nil, NewExportError("Export", name, "invalid service name", ErrInvalidServiceName)
	}
	if image == "" {
		return nil, NewExportError("Export", name, "image reference is required", ErrMissingImage)
	}
	if err := r.Validate(); err != nil {
		return nil, NewExportError("Export", name, err.Error(), err)
	}

	doc := project{
		Services: map[string]service{
			name: {
				Image:   image,
				Ports:   []string{fmt.Sprintf("%d:%d", r.Port, r.Port)},
				Restart: "no",
			},
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, NewExportError("Export", name, err.Error(), err)
	}

	// Round-trip through the compose loader: an export the loader rejects
	// must never leave this package.
	if err := Validate(out); err != nil {
		return nil, err
	}

	return out, nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate loads compose YAML through compose-go and checks it defines at
// least one service.
func Validate(content []byte) error {
	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return NewExportError("Validate", "", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return NewExportError("Validate", "", "empty compose document", ErrInvalidYAML)
	}

	proj, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("gantry-export", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return NewExportError("Validate", "", err.Error(), ErrInvalidYAML)
	}

	if len(proj.Services) == 0 {
		return NewExportError("Validate", "", "compose project defines no services", ErrNoServices)
	}
	return nil
}
