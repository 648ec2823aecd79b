package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Authenticate(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	candidates := []Candidate{
		{Identity: "alice", Embedding: Embedding{1, 0, 0}},
		{Identity: "bob", Embedding: Embedding{0, 1, 0}},
	}

	res, err := m.Match(Embedding{0.99, 0.05, 0}, candidates, Authenticate)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "alice", res.Identity)
	assert.Greater(t, res.Score, 0.99)
	assert.Empty(t, res.Skipped)
}

func TestMatcher_Authenticate_BelowThreshold(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	// cos(45deg) ~ 0.707
	res, err := m.Match(Embedding{1, 1}, []Candidate{{Identity: "alice", Embedding: Embedding{1, 0}}}, Authenticate)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, res.Identity)
	assert.InDelta(t, 0.7071, res.Score, 1e-3)
}

func TestMatcher_Identify(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	candidates := []Candidate{
		{Identity: "far", Embedding: Embedding{0.5, 0.5}},
		{Identity: "near", Embedding: Embedding{0.1, 0.1}},
	}

	res, err := m.Match(Embedding{0, 0}, candidates, Identify)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "near", res.Identity)

	res, err = m.Match(Embedding{5, 5}, candidates, Identify)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestMatcher_TieKeepsEarlierCandidate(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	same := Embedding{0.2, 0.3, 0.4}
	candidates := []Candidate{
		{Identity: "first", Embedding: same},
		{Identity: "second", Embedding: same},
	}

	for _, p := range []Policy{Identify, Authenticate} {
		res, err := m.Match(same, candidates, p)
		require.NoError(t, err)
		assert.True(t, res.Matched, p.String())
		assert.Equal(t, "first", res.Identity, p.String())
	}
}

func TestMatcher_SurvivesMalformedRecords(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	candidates := []Candidate{
		{Identity: "short", Embedding: Embedding{1, 0}},
		{Identity: "empty", Embedding: nil},
		{Identity: "zero", Embedding: Embedding{0, 0, 0}},
		{Identity: "good", Embedding: Embedding{0, 0, 1}},
	}

	res, err := m.Match(Embedding{0, 0.01, 1}, candidates, Authenticate)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "good", res.Identity)

	require.Len(t, res.Skipped, 3)
	assert.Equal(t, Skip{Identity: "short", Reason: SkipShapeMismatch, Len: 2}, res.Skipped[0])
	assert.Equal(t, Skip{Identity: "empty", Reason: SkipEmpty, Len: 0}, res.Skipped[1])
	assert.Equal(t, Skip{Identity: "zero", Reason: SkipZeroNorm, Len: 3}, res.Skipped[2])
}

func TestMatcher_ZeroNormIsComparableUnderIdentify(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	res, err := m.Match(Embedding{0.1, 0}, []Candidate{{Identity: "zero", Embedding: Embedding{0, 0}}}, Identify)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Empty(t, res.Skipped)
}

func TestMatcher_InvalidInput(t *testing.T) {
	m := NewMatcher(DefaultThresholds())
	candidates := []Candidate{{Identity: "a", Embedding: Embedding{1}}}

	_, err := m.Match(nil, candidates, Identify)
	assert.ErrorIs(t, err, ErrInvalidEmbedding)

	_, err = m.Match(Embedding{0}, candidates, Authenticate)
	assert.ErrorIs(t, err, ErrInvalidEmbedding)
}

func TestMatcher_NoCandidates(t *testing.T) {
	m := NewMatcher(DefaultThresholds())

	res, err := m.Match(Embedding{1, 2}, nil, Authenticate)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, res.Score)
}

func TestMatcher_CustomThresholds(t *testing.T) {
	m := NewMatcher(Thresholds{IdentifyMaxDistance: 0.6, AuthenticateMinSimilarity: 0.5})

	res, err := m.Match(Embedding{1, 1}, []Candidate{{Identity: "a", Embedding: Embedding{1, 0}}}, Authenticate)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestPolicyAndSkipReason_String(t *testing.T) {
	assert.Equal(t, "identify", Identify.String())
	assert.Equal(t, "authenticate", Authenticate.String())
	assert.Equal(t, "policy(9)", Policy(9).String())
	assert.Equal(t, "shape_mismatch", SkipShapeMismatch.String())
	assert.Equal(t, "zero_norm", SkipZeroNorm.String())
}
