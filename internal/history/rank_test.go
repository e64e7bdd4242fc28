package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rankItem(url, title, domain string) *Item {
	return &Item{URL: url, Title: title, Domain: domain}
}

func TestRankEmptyQueryIsIdentity(t *testing.T) {
	t.Parallel()
	items := []*Item{
		rankItem("https://b.com", "B", "b.com"),
		rankItem("https://a.com", "A", "a.com"),
	}

	assert.Equal(t, items, Rank(items, ""))
	assert.Equal(t, items, Rank(items, "   "))
}

func TestRankQualification(t *testing.T) {
	t.Parallel()
	items := []*Item{
		rankItem("https://github.com", "GitHub", "github.com"),
		rankItem("https://example.com", "Example", "example.com"),
	}

	got := Rank(items, "git")
	assert.Len(t, got, 1)
	assert.Equal(t, "https://github.com", got[0].URL)
}

func TestRankAllTokensMustMatch(t *testing.T) {
	t.Parallel()
	items := []*Item{
		rankItem("https://github.com/golang/go", "The Go Language", "github.com"),
	}

	assert.Len(t, Rank(items, "github go"), 1)
	assert.Empty(t, Rank(items, "github rust"))
}

func TestRankDomainOutweighsTitle(t *testing.T) {
	t.Parallel()
	domainHit := rankItem("https://x1.example/a", "plain", "github.com")
	titleHit := rankItem("https://x2.example/a", "github stuff", "other.com")

	got := Rank([]*Item{titleHit, domainHit}, "git")
	assert.Len(t, got, 2)
	assert.Equal(t, domainHit, got[0])
}

func TestRankInOrderURLBonus(t *testing.T) {
	t.Parallel()
	// token offsets in both URLs land in the same position bucket, so the
	// only scoring difference is the order bonus
	inOrder := rankItem("https://example.com/git/hub", "t", "example.com")
	reversed := rankItem("https://example.com/hub/git", "t", "example.com")

	tokens := []string{"git", "hub"}
	boosted, ok := scoreItem(inOrder, tokens)
	assert.True(t, ok)
	base, ok := scoreItem(reversed, tokens)
	assert.True(t, ok)
	assert.Equal(t, orderedTokensBonus, boosted-base)

	got := Rank([]*Item{reversed, inOrder}, "git hub")
	assert.Equal(t, inOrder, got[0])
}

func TestRankSearchResultsPenalty(t *testing.T) {
	t.Parallel()
	content := rankItem("https://docs.example/golang", "golang docs", "docs.example")
	search := rankItem("https://docs.example/find?q=golang", "golang docs", "docs.example")

	got := Rank([]*Item{search, content}, "golang")
	assert.Equal(t, content, got[0])
}

func TestRankTiebreakers(t *testing.T) {
	t.Parallel()
	older := rankItem("https://a.example/go", "go", "a.example")
	newer := rankItem("https://b.example/go", "go", "b.example")
	older.LastVisit = 1000
	newer.LastVisit = 2000

	got := Rank([]*Item{older, newer}, "go")
	assert.Len(t, got, 2)
	assert.Equal(t, newer, got[0])
}

func TestRankDeterministic(t *testing.T) {
	t.Parallel()
	items := []*Item{
		rankItem("https://github.com/a", "a", "github.com"),
		rankItem("https://github.com/b", "b", "github.com"),
		rankItem("https://gitlab.com/c", "c", "gitlab.com"),
	}

	first := Rank(items, "git")
	second := Rank(items, "git")
	assert.Equal(t, first, second)
}
