package solutions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aeginies/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSolutions() domain.Solutions {
	return domain.Solutions{
		"Mur ossature bois": {
			Category: "Murs",
			Products: []domain.SolutionProduct{
				{ID: "10234", Name: "Montant <épicéa>", Quantity: 2.5, NormalizedImpact: 160, ServiceLife: 25, Benefit: -20},
			},
		},
	}
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "solutions_db.json"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSolutions()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSolutions(), loaded)
}

func TestFileStore_LoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	loaded, err := NewFileStore(filepath.Join(dir, "absent.json")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	loaded, err = NewFileStore(empty).Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestFileStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"x": [}`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrMalformedSolutions)
}

func TestDecode_OriginalFieldNames(t *testing.T) {
	doc := `{
    "Dalle": {
        "categorie": "Planchers",
        "produits": [
            {"id_inies": "55", "nom": "Chape", "quantité": 1.0, "impact_normalisé": 9.5, "durée_vie": 50, "d_bénéfices": 0}
        ]
    }
}`
	got, err := Decode([]byte(doc))
	require.NoError(t, err)

	line := got["Dalle"].Products[0]
	assert.Equal(t, "Planchers", got["Dalle"].Category)
	assert.Equal(t, "55", line.ID)
	assert.Equal(t, 9.5, line.NormalizedImpact)
	assert.Equal(t, 50, line.ServiceLife)
}

func TestEncode_Format(t *testing.T) {
	data, err := Encode(sampleSolutions())
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "\n    \"Mur ossature bois\": {")
	assert.Contains(t, text, `"impact_normalisé": 160`)
	// non-ASCII and HTML characters are not escaped
	assert.Contains(t, text, `"nom": "Montant <épicéa>"`)
	assert.False(t, strings.Contains(text, `\u`), "unexpected escape in %s", text)
}

func TestEncode_Nil(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}
