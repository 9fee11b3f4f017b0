package cdp

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
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

const fixtureLogin = `<!doctype html>
<html><body>
<form onsubmit="event.preventDefault(); document.getElementById('out').textContent = 'Welcome ' + document.getElementById('email').value;">
  <label for="email">Email</label><input id="email" type="email">
  <label for="password">Password</label><input id="password" type="password">
  <button type="submit">Sign In</button>
</form>
<p id="out"></p>
<p style="display:none">Hidden Banner</p>
<a href="/popup" target="_blank">Open report</a>
<iframe name="widget" src="/frame"></iframe>
</body></html>`

const fixtureFrame = `<!doctype html><html><body><button class="inner">Inner</button><label for="note">Note</label><input id="note"></body></html>`

const fixturePopup = `<!doctype html><html><body><h1>Report</h1><button onclick="window.close()">Close report</button></body></html>`

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("/", page(fixtureLogin))
	mux.HandleFunc("/frame", page(fixtureFrame))
	mux.HandleFunc("/popup", page(fixturePopup))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSessionAgainstFixture(t *testing.T) {
	if testing.Short() {
		t.Skip("browser integration test skipped in short mode")
	}
	if !chromeAvailable() {
		t.Skip("no Chrome or Chromium binary on PATH")
	}

	server := newFixtureServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	d := New(zaptest.NewLogger(t))
	sess, err := d.Launch(ctx, driver.LaunchOptions{
		Headless:       true,
		Width:          1280,
		Height:         720,
		NoSandbox:      true,
		DisableDevShm:  true,
		DefaultTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer closeCancel()
		assert.NoError(t, sess.Close(closeCtx))
		assert.NoError(t, sess.Close(closeCtx), "second close is a no-op")
	}()

	require.NoError(t, sess.Navigate(ctx, server.URL+"/", flow.WaitCommit, 10*time.Second))

	p, err := sess.ActivePage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.WaitForLoadState(ctx, flow.WaitDOMContentLoaded, 3*time.Second))

	t.Run("FillAndClick", func(t *testing.T) {
		email, err := p.Locate(ctx, flow.At(flow.Label("Email")))
		require.NoError(t, err)
		require.NoError(t, email.Fill(ctx, "clubadmin@example.com", 0))

		pw, err := p.Locate(ctx, flow.At(flow.Label("Password")))
		require.NoError(t, err)
		require.NoError(t, pw.Fill(ctx, "secret", 0))

		submit, err := p.Locate(ctx, flow.At(flow.Role("button", "Sign In")))
		require.NoError(t, err)
		require.NoError(t, submit.Click(ctx, 5*time.Second))

		banner, err := p.Locate(ctx, flow.At(flow.Text("Welcome clubadmin@example.com")))
		require.NoError(t, err)
		assert.NoError(t, banner.WaitVisible(ctx, 3*time.Second))
	})

	t.Run("MissingElement", func(t *testing.T) {
		el, err := p.Locate(ctx, flow.At(flow.Text("Nothing like this")))
		require.NoError(t, err)
		assert.ErrorIs(t, el.Click(ctx, 500*time.Millisecond), driver.ErrNotFound)

		second, err := p.Locate(ctx, flow.At(flow.Role("button", "Sign In")).Nth(1))
		require.NoError(t, err)
		assert.ErrorIs(t, second.Click(ctx, 500*time.Millisecond), driver.ErrNotFound)
	})

	t.Run("HiddenElementTimesOut", func(t *testing.T) {
		el, err := p.Locate(ctx, flow.At(flow.Text("Hidden Banner")))
		require.NoError(t, err)
		assert.ErrorIs(t, el.WaitVisible(ctx, 500*time.Millisecond), driver.ErrTimeout)
	})

	t.Run("Frames", func(t *testing.T) {
		frames, err := p.Frames(ctx)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, "widget", frames[0].Name())
		assert.NoError(t, frames[0].WaitForLoadState(ctx, flow.WaitDOMContentLoaded, 3*time.Second))

		inner, err := p.Locate(ctx, flow.At(flow.CSS("button.inner")).InFrame("widget"))
		require.NoError(t, err)
		assert.NoError(t, inner.WaitVisible(ctx, 3*time.Second))

		byRole, err := p.Locate(ctx, flow.At(flow.Role("button", "Inner")).InFrame("widget"))
		require.NoError(t, err)
		assert.NoError(t, byRole.Click(ctx, 3*time.Second))

		byText, err := p.Locate(ctx, flow.At(flow.Text("Inner")).InFrame("/frame"))
		require.NoError(t, err)
		assert.NoError(t, byText.WaitVisible(ctx, 3*time.Second))

		field, err := p.Locate(ctx, flow.At(flow.Label("Note")).InFrame("widget"))
		require.NoError(t, err)
		assert.NoError(t, field.Fill(ctx, "framed", 3*time.Second))

		// The sign-in button lives in the top document only.
		outside, err := p.Locate(ctx, flow.At(flow.Role("button", "Sign In")).InFrame("widget"))
		require.NoError(t, err)
		assert.ErrorIs(t, outside.WaitVisible(ctx, 500*time.Millisecond), driver.ErrNotFound)

		// Index counts matches inside the frame, not across documents.
		second, err := p.Locate(ctx, flow.At(flow.Text("Inner")).InFrame("widget").Nth(1))
		require.NoError(t, err)
		assert.ErrorIs(t, second.WaitVisible(ctx, 500*time.Millisecond), driver.ErrNotFound)
	})

	t.Run("Scroll", func(t *testing.T) {
		assert.NoError(t, p.Scroll(ctx))
	})

	t.Run("ActivePageFollowsPopup", func(t *testing.T) {
		link, err := p.Locate(ctx, flow.At(flow.Role("link", "Open report")))
		require.NoError(t, err)
		require.NoError(t, link.Click(ctx, 5*time.Second))

		require.Eventually(t, func() bool {
			active, err := sess.ActivePage(ctx)
			if err != nil {
				return false
			}
			heading, err := active.Locate(ctx, flow.At(flow.Role("heading", "Report")))
			return err == nil && heading.WaitVisible(ctx, 200*time.Millisecond) == nil
		}, 10*time.Second, 250*time.Millisecond)
	})

	t.Run("ClosedPopupFallsBackToOpener", func(t *testing.T) {
		popup, err := sess.ActivePage(ctx)
		require.NoError(t, err)
		closeBtn, err := popup.Locate(ctx, flow.At(flow.Role("button", "Close report")))
		require.NoError(t, err)
		require.NoError(t, closeBtn.Click(ctx, 5*time.Second))

		require.Eventually(t, func() bool {
			active, err := sess.ActivePage(ctx)
			if err != nil {
				return false
			}
			submit, err := active.Locate(ctx, flow.At(flow.Role("button", "Sign In")))
			return err == nil && submit.WaitVisible(ctx, 200*time.Millisecond) == nil
		}, 10*time.Second, 250*time.Millisecond)
	})
}
