// Package recipe contains the container build recipe: the declarative
// description of how a source checkout becomes a running, network-reachable
// service image. This is part of the Functional Core - parsing, validation,
// and rendering are pure; reading the recipe file is the only I/O and lives
// in Load.
package recipe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/getgantry/gantry/internal/core/launch"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Recipe Types
// =============================================================================

// DefaultFileName is the recipe file looked up in a build context root.
const DefaultFileName = "gantry.yaml"

// Recipe describes the four build stages: base environment, source
// materialization, dependency installation, and the process launch contract.
type Recipe struct {
	// Base environment: runtime image and version tag.
	Runtime string `yaml:"runtime"` // runtime family, currently "python"
	Version string `yaml:"version"` // image tag, e.g. "3.11-slim"

	// Source materialization.
	WorkDir string `yaml:"workdir"` // in-container source path

	// SourceFirst reproduces the legacy layer ordering: the full source
	// tree is copied before dependencies are installed, so any source
	// change invalidates the dependency layer. Off by default; the
	// default ordering installs from the manifest first.
	SourceFirst bool `yaml:"source_first"`

	// Dependency installation.
	Manifest string   `yaml:"manifest"` // manifest path relative to the context root
	PipFlags []string `yaml:"pip_flags"`

	// Process launch contract.
	Port    int    `yaml:"port"`    // declared traffic port, bound on all interfaces
	Module  string `yaml:"module"`  // importable application module
	Object  string `yaml:"object"`  // application object within the module
	Workers int    `yaml:"workers"` // manager worker processes; 0 keeps the default
}

// Default returns a recipe with the stock values for a WSGI web service.
func Default() Recipe {
	return Recipe{
		Runtime:  "python",
		Version:  "3.11-slim",
		WorkDir:  "/app",
		Manifest: "requirements.txt",
		Port:     10000,
		Module:   "app",
		Object:   "app",
	}
}

// BaseImage returns the immutable runtime image reference.
func (r Recipe) BaseImage() string {
	return r.Runtime + ":" + r.Version
}

// LaunchSpec returns the launch contract derived from the recipe.
func (r Recipe) LaunchSpec() launch.Spec {
	return launch.Spec{
		Module:  r.Module,
		Object:  r.Object,
		Port:    r.Port,
		Workers: r.Workers,
	}
}

// =============================================================================
// Loading
// =============================================================================

// Parse decodes recipe YAML over the defaults. Unknown fields are rejected:
// a typoed key silently falling back to a default would change the image
// contract without warning.
func Parse(data []byte) (Recipe, error) {
	r := Default()

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: all defaults.
			return Default(), nil
		}
		return Recipe{}, NewRecipeError("Parse", "", err.Error(), ErrInvalidYAML)
	}

	if err := r.Validate(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// Load reads and parses a recipe file. A missing file yields the defaults:
// the recipe is an override mechanism, not a requirement.
func Load(filePath string) (Recipe, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Recipe{}, NewRecipeError("Load", filePath, err.Error(), ErrUnreadable)
	}
	return Parse(data)
}

// Snapshot encodes the recipe as YAML. A build records the resolved recipe
// this way so later launches read the same contract the image was baked
// with, wherever the recipe originally came from.
func (r Recipe) Snapshot() (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", NewRecipeError("Snapshot", "", err.Error(), err)
	}
	return string(data), nil
}

// =============================================================================
// Validation
// =============================================================================

// versionTagPattern matches a registry image tag.
var versionTagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

// pipFlagPattern matches an installer flag like --no-cache-dir. Anything
// that is not flag-shaped could smuggle extra arguments into the install
// instruction.
var pipFlagPattern = regexp.MustCompile(`^--?[A-Za-z0-9][A-Za-z0-9._=/-]*$`)

// Validate checks that the recipe can produce a buildable image. Every
// failure here is fatal: a recipe that cannot be fully honored must not
// produce layers.
func (r Recipe) Validate() error {
	if r.Runtime != "python" {
		return NewRecipeError("Validate", "runtime",
			fmt.Sprintf("unsupported runtime %q", r.Runtime), ErrUnsupportedRuntime)
	}
	if r.Version == "" || !versionTagPattern.MatchString(r.Version) {
		return NewRecipeError("Validate", "version",
			fmt.Sprintf("invalid version tag %q", r.Version), ErrInvalidVersion)
	}
	if !path.IsAbs(r.WorkDir) {
		return NewRecipeError("Validate", "workdir",
			fmt.Sprintf("workdir %q must be absolute", r.WorkDir), ErrInvalidWorkDir)
	}
	if err := validateManifestPath(r.Manifest); err != nil {
		return err
	}
	for _, flag := range r.PipFlags {
		if !pipFlagPattern.MatchString(flag) {
			return NewRecipeError("Validate", "pip_flags",
				fmt.Sprintf("invalid installer flag %q", flag), ErrInvalidPipFlag)
		}
	}
	if err := r.LaunchSpec().Validate(); err != nil {
		return NewRecipeError("Validate", "launch", err.Error(), err)
	}
	return nil
}

// validateManifestPath ensures the manifest stays inside the build context.
func validateManifestPath(p string) error {
	if p == "" {
		return NewRecipeError("Validate", "manifest", "manifest path is required", ErrInvalidManifestPath)
	}
	if path.IsAbs(p) {
		return NewRecipeError("Validate", "manifest",
			fmt.Sprintf("manifest %q must be relative to the context root", p), ErrInvalidManifestPath)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return NewRecipeError("Validate", "manifest",
			fmt.Sprintf("manifest %q escapes the context root", p), ErrInvalidManifestPath)
	}
	return nil
}

// ImageTag returns the tag a successful build of the named service is
// published under. Failed builds are never tagged.
func ImageTag(name string) string {
	return "gantry/" + name + ":latest"
}
