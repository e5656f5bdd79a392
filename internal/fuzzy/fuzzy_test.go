package fuzzy_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/kvtui/internal/fuzzy"
)

// isSubsequence reports whether all characters of query appear in order
// within candidate, case-insensitively.
func isSubsequence(query, candidate string) bool {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)
	i := 0
	for _, r := range c {
		if i < len(q) && rune(q[i]) == r {
			i++
		}
	}
	return i == len(q)
}

func TestEmptyQueryIsIdentity(t *testing.T) {
	t.Parallel()

	candidates := []string{"zebra", "apple", "mango", "apple"}
	got := fuzzy.Filter("", candidates)

	assert.Equal(t, candidates, got)

	// The input slice must not be aliased by the result.
	got[0] = "mutated"
	assert.Equal(t, "zebra", candidates[0])
}

func TestMatchesAreSubsequences(t *testing.T) {
	t.Parallel()

	candidates := []string{
		"production-db-password",
		"staging-db-password",
		"api-key-google",
		"api-key-aws",
		"tls-cert",
	}

	for _, query := range []string{"db", "apikey", "prodpass", "google"} {
		got := fuzzy.Filter(query, candidates)
		require.NotEmpty(t, got, "query %q", query)
		for _, c := range got {
			assert.True(t, isSubsequence(query, c), "%q should be a subsequence of %q", query, c)
		}
	}
}

func TestNonMatchesExcluded(t *testing.T) {
	t.Parallel()

	candidates := []string{"alpha", "beta", "gamma"}
	got := fuzzy.Filter("zz", candidates)
	assert.Empty(t, got)

	got = fuzzy.Filter("ga", candidates)
	assert.NotContains(t, got, "beta")
}

func TestCaseInsensitive(t *testing.T) {
	t.Parallel()

	candidates := []string{"Database-URL", "API-TOKEN"}
	assert.Contains(t, fuzzy.Filter("database", candidates), "Database-URL")
	assert.Contains(t, fuzzy.Filter("TOKEN", candidates), "API-TOKEN")
}

func TestExactNameRanksAboveScatteredMatch(t *testing.T) {
	t.Parallel()

	candidates := []string{"x-d-b-x", "db-host"}
	got := fuzzy.Filter("db", candidates)
	require.Len(t, got, 2)
	assert.Equal(t, "db-host", got[0], "contiguous match should outrank scattered one")
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	candidates := []string{"one", "two", "three", "tone", "stone"}
	first := fuzzy.Filter("one", candidates)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, fuzzy.Filter("one", candidates))
	}
}
