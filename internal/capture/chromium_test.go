package capture

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	c := NewChromium(Options{})
	assert.Equal(t, DefaultWidth, c.Options.Width)
	assert.Equal(t, DefaultHeight, c.Options.Height)
	assert.Equal(t, DefaultTimeout, c.Options.Timeout)

	c = NewChromium(Options{Width: 100, Timeout: time.Second})
	assert.Equal(t, 100, c.Options.Width)
	assert.Equal(t, time.Second, c.Options.Timeout)
}

func TestEmptyDocument(t *testing.T) {
	c := NewChromium(Options{})
	_, err := c.PrintPDF(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	_, err = c.CapturePNG(context.Background(), []byte{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func findBrowser(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chromium binary available")
	return ""
}

func TestPrintPDF_Chromium(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	c := NewChromium(Options{ExecPath: findBrowser(t), NoSandbox: true, Timeout: 30 * time.Second})

	pdf, err := c.PrintPDF(context.Background(), []byte("<html><body><p>hello</p></body></html>"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	png, err := c.CapturePNG(context.Background(), []byte("<html><body><p>hello</p></body></html>"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
