package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
)

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func TestChromeDriver_PageSurvivesLaunchContext(t *testing.T) {
	execPath := findChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1 class="title">%s</h1></body></html>`, r.URL.Path)
	}))
	defer srv.Close()

	driver := NewChromeDriver(ChromeConfig{
		Headless:       true,
		NoSandbox:      true,
		ExecPath:       execPath,
		StartupTimeout: 30 * time.Second,
	}, arbor.NewLogger())

	// Short-lived contexts for setup calls must not tear down the browser or tab
	launchCtx, launchCancel := context.WithTimeout(context.Background(), 45*time.Second)
	b, err := driver.Launch(launchCtx)
	launchCancel()
	require.NoError(t, err)
	defer b.Close()

	pageCtx, pageCancel := context.WithTimeout(context.Background(), 30*time.Second)
	page, err := b.NewPage(pageCtx, interfaces.PageOptions{
		UserAgent:      "pricewatch-test/1.0",
		ViewportWidth:  1280,
		ViewportHeight: 800,
		Timeout:        20 * time.Second,
	})
	pageCancel()
	require.NoError(t, err)
	defer page.Close()

	for _, path := range []string{"/first", "/second"} {
		require.NoError(t, page.Goto(context.Background(), srv.URL+path))
		assert.True(t, page.WaitFor(context.Background(), "h1.title", 5*time.Second))

		doc, err := page.Document(context.Background())
		require.NoError(t, err)
		assert.Equal(t, path, doc.Find("h1.title").Text())
		assert.Equal(t, srv.URL+path, page.URL())
	}
}
