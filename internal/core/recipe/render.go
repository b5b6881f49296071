package recipe

import (
	"encoding/json"
	"strings"
	"text/template"
)

// =============================================================================
// Dockerfile Rendering
// =============================================================================

// dockerfileTemplate is the rendered build recipe. The default ordering
// copies the manifest and installs dependencies before the full source
// copy, so a source-only change leaves the dependency layer cached. The
// source_first branch reproduces the legacy ordering where any source
// change forces a dependency reinstall.
//
// The installer self-upgrade must precede the manifest install: an outdated
// installer may fail to resolve modern package metadata.
const dockerfileTemplate = `FROM {{.BaseImage}}
WORKDIR {{.WorkDir}}
{{- if .SourceFirst}}
COPY . .
RUN pip install --upgrade pip
RUN pip install {{.InstallFlags}}-r {{.Manifest}}
{{- else}}
COPY {{.Manifest}} {{.Manifest}}
RUN pip install --upgrade pip
RUN pip install {{.InstallFlags}}-r {{.Manifest}}
COPY . .
{{- end}}
EXPOSE {{.Port}}
CMD {{.CommandJSON}}
`

var dockerfileTmpl = template.Must(template.New("dockerfile").Parse(dockerfileTemplate))

// renderContext carries the precomputed template fields.
type renderContext struct {
	BaseImage    string
	WorkDir      string
	SourceFirst  bool
	Manifest     string
	InstallFlags string
	Port         int
	CommandJSON  string
}

// Render produces the Dockerfile text for the recipe. Rendering is
// deterministic: the same recipe always yields byte-identical output, so
// the builder can hand the result to the daemon as the authoritative build
// instruction stream.
//
// The recipe must have been validated; Render only fails if the launch
// command cannot be encoded.
func (r Recipe) Render() (string, error) {
	cmd, err := json.Marshal(r.LaunchSpec().Command())
	if err != nil {
		return "", NewRecipeError("Render", "command", err.Error(), err)
	}

	flags := ""
	if len(r.PipFlags) > 0 {
		flags = strings.Join(r.PipFlags, " ") + " "
	}

	var b strings.Builder
	rc := renderContext{
		BaseImage:    r.BaseImage(),
		WorkDir:      r.WorkDir,
		SourceFirst:  r.SourceFirst,
		Manifest:     r.Manifest,
		InstallFlags: flags,
		Port:         r.Port,
		CommandJSON:  string(cmd),
	}
	if err := dockerfileTmpl.Execute(&b, rc); err != nil {
		return "", NewRecipeError("Render", "", err.Error(), err)
	}
	return b.String(), nil
}
