package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslationFallbacks(t *testing.T) {
	assert.Equal(t, "🚇 Маршрут", T(UA, "route"))
	assert.Equal(t, "🚇 Route", T(EN, "route"))

	// Unknown language falls back to the default bundle.
	assert.Equal(t, T(UA, "route"), T("de", "route"))
	// Unknown key falls back to the key itself.
	assert.Equal(t, "no_such_key", T(UA, "no_such_key"))
}

func TestPlaceholderSubstitution(t *testing.T) {
	text := Tf(UA, "error_station_not_found", map[string]string{"station": "Левада"})
	assert.Contains(t, text, "Левада")
	assert.NotContains(t, text, "{station}")
}

func TestTransfers(t *testing.T) {
	assert.Equal(t, "без пересадок", Transfers(UA, 0))
	assert.Equal(t, "1 пересадка", Transfers(UA, 1))
	assert.Equal(t, "2 пересадки", Transfers(UA, 2))
	assert.Equal(t, "no transfers", Transfers(EN, 0))
	assert.Equal(t, "3 transfers", Transfers(EN, 3))
}

func TestEveryKeyExistsInBothLanguages(t *testing.T) {
	for key := range translations[UA] {
		_, ok := translations[EN][key]
		assert.True(t, ok, "key %q missing in en", key)
	}
	for key := range translations[EN] {
		_, ok := translations[UA][key]
		assert.True(t, ok, "key %q missing in ua", key)
	}
}
