// Package manifest contains pure functions for parsing pip requirement
// manifests. This is part of the Functional Core - all functions are pure
// with no I/O.
//
// A manifest is the requirements.txt-shaped file enumerating the third-party
// libraries the dependency layer installs. The parser understands pinned
// entries (name==version), looser specifiers (>=, <=, ~=, !=), and bare
// names. The fingerprint over the normalized entries is the cache key for
// the dependency layer: it changes exactly when the manifest changes.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Types
// =============================================================================

// Requirement is a single manifest entry.
type Requirement struct {
	Name      string // normalized package name (lowercase, "-" for "_" and ".")
	Specifier string // "==", ">=", "<=", "~=", "!=", or "" for bare names
	Version   string // version text, "" for bare names
	Raw       string // the original line, trimmed
}

// Pinned reports whether the requirement pins an exact version.
func (r Requirement) Pinned() bool {
	return r.Specifier == "==" && r.Version != ""
}

// String returns the normalized entry text.
func (r Requirement) String() string {
	if r.Specifier == "" {
		return r.Name
	}
	return r.Name + r.Specifier + r.Version
}

// Manifest is a parsed dependency manifest.
type Manifest struct {
	Requirements []Requirement
}

// =============================================================================
// Parsing
// =============================================================================

// packagePattern matches a PEP 503-ish package name.
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// versionPattern is a permissive version shape: digits, letters, dots,
// and pre/post-release separators. Resolution correctness is pip's job,
// this only rejects obviously malformed text.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9.*+!_-]+$`)

// specifiers in match order; "==" must be tried before "=" typos fall through.
var specifiers = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// Parse parses manifest content into requirements.
//
// Blank lines and comment lines (#) are skipped. Inline comments after an
// entry are stripped. A malformed entry is a fatal parse error: the build
// stage consuming this manifest is all-or-nothing, so a manifest that cannot
// be fully understood must not produce a dependency layer.
func Parse(content string) (*Manifest, error) {
	m := &Manifest{}
	seen := make(map[string]int) // name -> first line number

	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1
		entry := strings.TrimSpace(line)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		// Strip inline comments.
		if idx := strings.Index(entry, " #"); idx >= 0 {
			entry = strings.TrimSpace(entry[:idx])
		}

		// Installer directives (-r, -e, --index-url, ...) would make the
		// dependency layer depend on files outside the manifest.
		if strings.HasPrefix(entry, "-") {
			return nil, NewParseError(lineNo, entry, "installer directives are not supported", ErrUnsupportedDirective)
		}

		req, err := parseRequirement(entry)
		if err != nil {
			return nil, NewParseError(lineNo, entry, err.Error(), err)
		}

		if first, dup := seen[req.Name]; dup {
			return nil, NewParseError(lineNo, entry,
				fmt.Sprintf("package %q already listed on line %d", req.Name, first), ErrDuplicatePackage)
		}
		seen[req.Name] = lineNo

		m.Requirements = append(m.Requirements, req)
	}

	return m, nil
}

// parseRequirement parses a single non-empty entry.
func parseRequirement(entry string) (Requirement, error) {
	// Environment markers and extras are resolver features this layer
	// does not model.
	if strings.ContainsAny(entry, ";[]") {
		return Requirement{}, ErrUnsupportedDirective
	}

	for _, spec := range specifiers {
		idx := strings.Index(entry, spec)
		if idx < 0 {
			continue
		}

		name := strings.TrimSpace(entry[:idx])
		version := strings.TrimSpace(entry[idx+len(spec):])

		if !packagePattern.MatchString(name) {
			return Requirement{}, ErrInvalidName
		}
		if version == "" || !versionPattern.MatchString(version) {
			return Requirement{}, ErrInvalidVersion
		}

		return Requirement{
			Name:      NormalizeName(name),
			Specifier: spec,
			Version:   version,
			Raw:       entry,
		}, nil
	}

	// Bare name, no specifier.
	if !packagePattern.MatchString(entry) {
		return Requirement{}, ErrInvalidName
	}

	return Requirement{Name: NormalizeName(entry), Raw: entry}, nil
}

// NormalizeName normalizes a package name per PEP 503: lowercase, with
// runs of ".", "_" and "-" collapsed to a single "-".
func NormalizeName(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	prevSep := false
	for _, r := range lower {
		if r == '.' || r == '_' || r == '-' {
			if !prevSep {
				b.WriteByte('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// Inspection
// =============================================================================

// Unpinned returns the requirements that do not pin an exact version.
// Rebuilding from such a manifest is only functionally reproducible, not
// version-for-version reproducible.
func (m *Manifest) Unpinned() []Requirement {
	var out []Requirement
	for _, r := range m.Requirements {
		if !r.Pinned() {
			out = append(out, r)
		}
	}
	return out
}

// FullyPinned reports whether every requirement pins an exact version.
func (m *Manifest) FullyPinned() bool {
	return len(m.Unpinned()) == 0
}

// =============================================================================
// Fingerprint
// =============================================================================

// Fingerprint returns a hex sha256 over the sorted normalized entries.
//
// This is the dependency-layer cache key: changing only application source
// leaves it untouched, while any manifest change - added package, bumped
// pin, removed entry - produces a new value. Formatting-only edits
// (comments, blank lines, entry order) do not change it.
func (m *Manifest) Fingerprint() string {
	entries := make([]string, 0, len(m.Requirements))
	for _, r := range m.Requirements {
		entries = append(entries, r.String())
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
