package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNameStripsDiacriticsAndSuffixes(t *testing.T) {
	assert.Equal(t, "viktor gyokeres", NormalizeName("Viktor Gyökeres"))
	assert.Equal(t, "joao felix", NormalizeName("João Félix"))
	assert.Equal(t, "arsenal", NormalizeName("Arsenal FC"))
	assert.Equal(t, "smith", NormalizeName("Smith Jr"))
	assert.Equal(t, "smith", NormalizeName("  Smith. "))
	assert.Equal(t, "", NormalizeName("FC"))
}

func TestIdentityHashOrderInsensitive(t *testing.T) {
	a := IdentityHash([]string{"Smith", "Jones"}, []string{"Arsenal", "Chelsea"})
	b := IdentityHash([]string{"Jones", "Smith"}, []string{"Chelsea", "Arsenal"})
	assert.Equal(t, a, b)
}

func TestIdentityHashTransliterationVariants(t *testing.T) {
	a := IdentityHash([]string{"Viktor Gyökeres"}, []string{"Arsenal"})
	b := IdentityHash([]string{"Viktor Gyokeres"}, []string{"Arsenal FC"})
	assert.Equal(t, a, b)
}

func TestIdentityHashDistinguishesEvents(t *testing.T) {
	a := IdentityHash([]string{"Smith"}, []string{"Arsenal"})
	b := IdentityHash([]string{"Smith"}, []string{"Chelsea"})
	c := IdentityHash([]string{"Jones"}, []string{"Arsenal"})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIdentityHashUsesPrimaryClubPairOnly(t *testing.T) {
	a := IdentityHash([]string{"Smith"}, []string{"Arsenal", "Chelsea"})
	b := IdentityHash([]string{"Smith"}, []string{"Arsenal", "Chelsea", "Spurs"})
	assert.Equal(t, a, b)
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TokenSimilarity([]string{"Viktor Gyökeres"}, []string{"viktor gyokeres"}))
	assert.Equal(t, 0.5, TokenSimilarity([]string{"Viktor Gyokeres"}, []string{"Gyokeres"}))
	assert.Equal(t, 0.0, TokenSimilarity([]string{"Smith"}, []string{"Jones"}))
	assert.Equal(t, 0.0, TokenSimilarity(nil, []string{"Smith"}))
}

func TestClubOverlap(t *testing.T) {
	assert.True(t, ClubOverlap([]string{"Arsenal FC"}, []string{"arsenal", "Chelsea"}))
	assert.False(t, ClubOverlap([]string{"Arsenal"}, []string{"Chelsea"}))
}
