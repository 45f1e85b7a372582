package provider

import (
	"context"
	"facilitywatch/internal/models"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
facilities:
  - id: "232447"
    name: Upper Pines
    type: campground
    city: Yosemite Valley
    state: CA
    availability:
      "2026-07-04":
        - label: Loop A
          available: 2
          capacity: 10
        - label: Loop B
          available: 1
          capacity: 5
  - id: "251869"
    name: Lake Sammamish Shelter
    type: shelter
    city: Issaquah
    state: WA
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStaticProvider(t *testing.T) {
	p, err := LoadStaticProvider(writeCatalog(t, testCatalog))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("search by name", func(t *testing.T) {
		results, err := p.Search(ctx, "pines", "", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "232447", results[0].ID)
	})

	t.Run("search by state", func(t *testing.T) {
		results, err := p.Search(ctx, "", "wa", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Lake Sammamish Shelter", results[0].Name)
	})

	t.Run("search limit", func(t *testing.T) {
		results, err := p.Search(ctx, "", "", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("facility", func(t *testing.T) {
		f, err := p.Facility(ctx, "232447")
		require.NoError(t, err)
		assert.Equal(t, "Yosemite Valley", f.City)

		_, err = p.Facility(ctx, "nope")
		assert.ErrorIs(t, err, ErrFacilityNotFound)
	})

	t.Run("availability", func(t *testing.T) {
		avail, err := p.Availability(ctx, "232447", "2026-07-04")
		require.NoError(t, err)
		assert.Equal(t, 3, avail.TotalAvailable)

		empty, err := p.Availability(ctx, "232447", "2026-12-25")
		require.NoError(t, err)
		assert.Equal(t, 0, empty.TotalAvailable)
		assert.NotNil(t, empty.Slots)
	})
}

func TestLoadStaticProvider_Errors(t *testing.T) {
	_, err := LoadStaticProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadStaticProvider(writeCatalog(t, "facilities: [unterminated"))
	assert.Error(t, err)

	_, err = LoadStaticProvider(writeCatalog(t, "facilities:\n  - name: No ID\n"))
	assert.Error(t, err)

	_, err = LoadStaticProvider(writeCatalog(t, "facilities:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(models.ProviderConfig{Type: models.ProviderTypeStatic, CatalogPath: writeCatalog(t, testCatalog)})
	require.NoError(t, err)
	assert.IsType(t, &StaticProvider{}, p)

	p, err = New(models.ProviderConfig{Type: models.ProviderTypeHTTP, BaseURL: "http://example.invalid"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPProvider{}, p)

	_, err = New(models.ProviderConfig{Type: "ftp"})
	assert.Error(t, err)
}
