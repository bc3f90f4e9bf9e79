package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	t.Run("Welcome", func(t *testing.T) {
		html, err := r.Render("welcome", map[string]string{
			"name":              "Ada",
			"verification_link": "https://example.test/verify?token=abc",
		})
		require.NoError(t, err)
		assert.Contains(t, html, "Welcome, Ada!")
		assert.Contains(t, html, `href="https://example.test/verify?token=abc"`)
	})

	t.Run("ExtensionOptional", func(t *testing.T) {
		withExt, err := r.Render("welcome.html", map[string]string{"name": "Ada"})
		require.NoError(t, err)
		withoutExt, err := r.Render("welcome", map[string]string{"name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, withExt, withoutExt)
	})

	t.Run("EscapesUserData", func(t *testing.T) {
		html, err := r.Render("welcome", map[string]string{
			"name": "<script>alert(1)</script>",
		})
		require.NoError(t, err)
		assert.NotContains(t, html, "<script>")
	})

	t.Run("MissingDataOmitsSections", func(t *testing.T) {
		html, err := r.Render("shipping-update", map[string]string{"order_id": "ord-1"})
		require.NoError(t, err)
		assert.Contains(t, html, "ord-1")
		assert.NotContains(t, html, "Tracking")
	})

	t.Run("UnknownTemplate", func(t *testing.T) {
		_, err := r.Render("nonexistent", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "available:")
	})
}

func TestNames(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	names := r.Names()
	assert.Contains(t, names, "welcome")
	assert.Contains(t, names, "reset-password")
	assert.Contains(t, names, "order-confirmation")
	assert.Contains(t, names, "shipping-update")
}
