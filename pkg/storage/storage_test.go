package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	d, err := ParseDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", d.ContentType)
	assert.Equal(t, []byte("hello"), d.Data)
	assert.Equal(t, ".png", d.Extension())

	_, err = ParseDataURI("https://cdn.example.com/site.jpg")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, err = ParseDataURI("data:image/png,plain")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, err = ParseDataURI("data:image/png;base64,!!!")
	assert.Error(t, err)
}

func TestIsDataURI(t *testing.T) {
	assert.True(t, IsDataURI("  data:image/jpeg;base64,AAAA"))
	assert.False(t, IsDataURI("exit-site/1.jpg"))
}
