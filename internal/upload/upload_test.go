package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	cases := map[string]bool{
		"photo.png":    true,
		"photo.jpg":    true,
		"photo.jpeg":   true,
		"photo.gif":    true,
		"photo.JPG":    true,
		"photo.Jpg":    false,
		"photo.PNG":    false,
		"photo.JPEG":   false,
		"photo.bmp":    false,
		"photo":        false,
		"photo.tar.gz": false,
		"a.b.png":      true,
	}
	for name, want := range cases {
		require.Equal(t, want, Allowed(name), "filename %q", name)
	}
}

func TestSecureFilename(t *testing.T) {
	require.Equal(t, "photo.png", SecureFilename("photo.png"))
	require.Equal(t, "photo.png", SecureFilename("../../etc/photo.png"))
	require.Equal(t, "myphoto.png", SecureFilename("my photo.png"))
	require.Equal(t, "photo.png", SecureFilename("..photo.png"))
	require.Empty(t, SecureFilename("..."))
}

func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["image"][0]
}

func TestSaveAndRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fh := makeFileHeader(t, "photo.JPG", []byte("image bytes"))
	name, err := store.Save(fh)
	require.NoError(t, err)
	require.Equal(t, "photo.JPG", name)
	require.True(t, store.Exists(name))

	require.NoError(t, store.Remove(name))
	require.False(t, store.Exists(name))

	// removing again is not an error
	require.NoError(t, store.Remove(name))
}

func TestSaveSkipsDisallowedExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fh := makeFileHeader(t, "photo.bmp", []byte("image bytes"))
	name, err := store.Save(fh)
	require.NoError(t, err)
	require.Empty(t, name)
	require.False(t, store.Exists("photo.bmp"))
}

func TestSaveStripsPathComponents(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fh := makeFileHeader(t, "weird name!.png", []byte("image bytes"))
	name, err := store.Save(fh)
	require.NoError(t, err)
	require.Equal(t, "weirdname.png", name)
	require.True(t, store.Exists(name))
}
