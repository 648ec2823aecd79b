package face

import "fmt"

// Policy selects how an input embedding is matched against stored ones.
type Policy int

const (
	// Identify picks the nearest record by Euclidean distance, provided the
	// distance is under the identify threshold. Used by match-face and
	// reset-pin, where the user's identity is not otherwise known.
	Identify Policy = iota
	// Authenticate picks the most similar record by cosine similarity,
	// provided it clears the authenticate threshold. Used for login
	// decisions and duplicate-face protection on enrollment.
	Authenticate
)

func (p Policy) String() string {
	switch p {
	case Identify:
		return "identify"
	case Authenticate:
		return "authenticate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

const (
	DefaultIdentifyMaxDistance       = 0.6
	DefaultAuthenticateMinSimilarity = 0.90
)

// Thresholds are the per-policy acceptance bounds.
type Thresholds struct {
	IdentifyMaxDistance       float64 // strict upper bound
	AuthenticateMinSimilarity float64 // strict lower bound
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		IdentifyMaxDistance:       DefaultIdentifyMaxDistance,
		AuthenticateMinSimilarity: DefaultAuthenticateMinSimilarity,
	}
}

// Candidate is one stored (identity, embedding) pair.
type Candidate struct {
	Identity  string
	Embedding Embedding
}

// SkipReason says why a candidate was left out of a scan.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	SkipShapeMismatch
	SkipEmpty
	SkipZeroNorm
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "none"
	case SkipShapeMismatch:
		return "shape_mismatch"
	case SkipEmpty:
		return "empty_embedding"
	case SkipZeroNorm:
		return "zero_norm"
	default:
		return fmt.Sprintf("skip(%d)", int(r))
	}
}

// Skip records a candidate the scan could not compare.
type Skip struct {
	Identity string
	Reason   SkipReason
	Len      int
}

// Result is the outcome of one scan. Matched == false is the NoMatch
// outcome; it is not an error.
type Result struct {
	Policy   Policy
	Matched  bool
	Identity string
	// Score is the distance (Identify) or similarity (Authenticate) of the
	// chosen candidate, or of the best rejected one when nothing matched.
	Score   float64
	Skipped []Skip
}

type Matcher struct {
	thresholds Thresholds
}

func NewMatcher(t Thresholds) *Matcher {
	return &Matcher{thresholds: t}
}

// compare scores one candidate. It is pure: a candidate that cannot be
// compared comes back with a SkipReason instead of an error.
func compare(input, stored Embedding, policy Policy) (float64, SkipReason) {
	if len(stored) == 0 {
		return 0, SkipEmpty
	}
	if len(stored) != len(input) {
		return 0, SkipShapeMismatch
	}
	if policy == Authenticate {
		sim, ok := CosineSimilarity(input, stored)
		if !ok {
			return 0, SkipZeroNorm
		}
		return sim, NotSkipped
	}
	dist, _ := EuclideanDistance(input, stored)
	return dist, NotSkipped
}

// Match scans candidates once, in order, and returns the best qualifying
// one under policy. Ties keep the earlier candidate, so callers pass
// candidates in registration order.
func (m *Matcher) Match(input Embedding, candidates []Candidate, policy Policy) (Result, error) {
	if err := input.Validate(); err != nil {
		return Result{}, err
	}
	if policy == Authenticate && input.norm() == 0 {
		return Result{}, fmt.Errorf("%w: zero vector", ErrInvalidEmbedding)
	}

	res := Result{Policy: policy}
	haveBest := false
	var best float64
	var bestRejected float64
	haveRejected := false

	for _, c := range candidates {
		score, skip := compare(input, c.Embedding, policy)
		if skip != NotSkipped {
			res.Skipped = append(res.Skipped, Skip{Identity: c.Identity, Reason: skip, Len: len(c.Embedding)})
			continue
		}

		if !m.accepts(score, policy) {
			if !haveRejected || better(score, bestRejected, policy) {
				bestRejected, haveRejected = score, true
			}
			continue
		}
		if !haveBest || better(score, best, policy) {
			best, haveBest = score, true
			res.Identity = c.Identity
		}
	}

	switch {
	case haveBest:
		res.Matched, res.Score = true, best
	case haveRejected:
		res.Score = bestRejected
	}
	return res, nil
}

func (m *Matcher) accepts(score float64, policy Policy) bool {
	if policy == Authenticate {
		return score > m.thresholds.AuthenticateMinSimilarity
	}
	return score < m.thresholds.IdentifyMaxDistance
}

// better reports whether a strictly beats b under policy.
func better(a, b float64, policy Policy) bool {
	if policy == Authenticate {
		return a > b
	}
	return a < b
}
