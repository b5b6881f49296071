package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Empty(t *testing.T) {
	m, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, m.Requirements)
}

func TestParse_CommentsAndBlankLines(t *testing.T) {
	m, err := Parse("# web framework\n\nflask==3.0.0\n\n# cors\nflask-cors==4.0.0\n")
	require.NoError(t, err)

	require.Len(t, m.Requirements, 2)
	assert.Equal(t, "flask", m.Requirements[0].Name)
	assert.Equal(t, "flask-cors", m.Requirements[1].Name)
}

func TestParse_PinnedEntry(t *testing.T) {
	m, err := Parse("gunicorn==21.2.0")
	require.NoError(t, err)

	require.Len(t, m.Requirements, 1)
	r := m.Requirements[0]
	assert.Equal(t, "gunicorn", r.Name)
	assert.Equal(t, "==", r.Specifier)
	assert.Equal(t, "21.2.0", r.Version)
	assert.True(t, r.Pinned())
}

func TestParse_InlineComment(t *testing.T) {
	m, err := Parse("numpy==1.26.4  # pinned for wheel availability")
	require.NoError(t, err)

	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "1.26.4", m.Requirements[0].Version)
}

func TestParse_LooseSpecifiers(t *testing.T) {
	m, err := Parse("requests>=2.31\nscipy~=1.11\nurllib3!=2.0.0")
	require.NoError(t, err)

	require.Len(t, m.Requirements, 3)
	assert.Equal(t, ">=", m.Requirements[0].Specifier)
	assert.Equal(t, "~=", m.Requirements[1].Specifier)
	assert.Equal(t, "!=", m.Requirements[2].Specifier)
	for _, r := range m.Requirements {
		assert.False(t, r.Pinned())
	}
}

func TestParse_BareName(t *testing.T) {
	m, err := Parse("groq")
	require.NoError(t, err)

	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "groq", m.Requirements[0].Name)
	assert.False(t, m.Requirements[0].Pinned())
}

func TestParse_NameNormalization(t *testing.T) {
	m, err := Parse("Sentence_Transformers==2.7.0")
	require.NoError(t, err)

	assert.Equal(t, "sentence-transformers", m.Requirements[0].Name)
}

func TestParse_DuplicatePackage(t *testing.T) {
	_, err := Parse("flask==3.0.0\nFlask==2.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePackage)
}

func TestParse_DirectiveRejected(t *testing.T) {
	_, err := Parse("-r other-requirements.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDirective)
}

func TestParse_EnvironmentMarkerRejected(t *testing.T) {
	_, err := Parse(`pywin32==306; sys_platform == "win32"`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDirective)
}

func TestParse_InvalidName(t *testing.T) {
	_, err := Parse("fla sk==3.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParse_MissingVersion(t *testing.T) {
	_, err := Parse("flask==")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestParse_ErrorCarriesLine(t *testing.T) {
	_, err := Parse("flask==3.0.0\nbad entry here\n")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

// =============================================================================
// Inspection Tests
// =============================================================================

func TestFullyPinned(t *testing.T) {
	m, err := Parse("flask==3.0.0\ngunicorn==21.2.0")
	require.NoError(t, err)
	assert.True(t, m.FullyPinned())
}

func TestUnpinned(t *testing.T) {
	m, err := Parse("flask==3.0.0\nrequests>=2.31\ngroq")
	require.NoError(t, err)

	unpinned := m.Unpinned()
	require.Len(t, unpinned, 2)
	assert.Equal(t, "requests", unpinned[0].Name)
	assert.Equal(t, "groq", unpinned[1].Name)
	assert.False(t, m.FullyPinned())
}

// =============================================================================
// Fingerprint Tests
// =============================================================================

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Parse("flask==3.0.0\ngunicorn==21.2.0")
	require.NoError(t, err)
	b, err := Parse("flask==3.0.0\ngunicorn==21.2.0")
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprint_IgnoresFormatting(t *testing.T) {
	a, err := Parse("flask==3.0.0\ngunicorn==21.2.0")
	require.NoError(t, err)
	b, err := Parse("# deps\ngunicorn==21.2.0\n\nflask==3.0.0  # framework\n")
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_ChangesOnVersionBump(t *testing.T) {
	a, err := Parse("flask==3.0.0")
	require.NoError(t, err)
	b, err := Parse("flask==3.0.1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_ChangesOnNewPackage(t *testing.T) {
	a, err := Parse("flask==3.0.0")
	require.NoError(t, err)
	b, err := Parse("flask==3.0.0\ngunicorn==21.2.0")
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
