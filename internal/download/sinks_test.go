package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Go Patterns: Vol. 2", "GoPatternsVol2.pdf"},
		{"already-clean", "alreadyclean.pdf"},
		{"Ünïcode Ñame", "ÜnïcodeÑame.pdf"},
		{"../../etc/passwd", "etcpasswd.pdf"},
		{"!!!", "download.pdf"},
		{"", "download.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.title))
		})
	}
}

func TestFileSaverAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewFileSaver(dir)
	require.NoError(t, err)

	first, err := saver.Save("The Guide", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := saver.Save("The Guide", strings.NewReader("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "TheGuide.pdf"), first)
	assert.Equal(t, filepath.Join(dir, "TheGuide (1).pdf"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			w.Write([]byte("%PDF-1.7"))
		case "/slow.pdf":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(50 * time.Millisecond)

	body, err := f.Fetch(context.Background(), srv.URL+"/ok.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.pdf")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/slow.pdf")
	assert.Error(t, err)
}
