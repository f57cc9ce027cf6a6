package landmarker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// FetchModel downloads the model asset at rawURL into cacheDir and returns the
// local path. An existing non-empty file is reused without a request.
func FetchModel(ctx context.Context, client *http.Client, rawURL, cacheDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("%w: no file name in %q", ErrModelUnavailable, rawURL)
	}

	dest := filepath.Join(cacheDir, name)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		slog.Debug("model asset cached", "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrModelUnavailable, rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(cacheDir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("%w: download: %v", ErrModelUnavailable, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: empty body from %s", ErrModelUnavailable, rawURL)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	slog.Info("model asset downloaded", "path", dest, "bytes", n)
	return dest, nil
}
