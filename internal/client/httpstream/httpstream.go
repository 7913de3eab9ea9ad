// Package httpstream implements the byte-transfer half of a
// Downloadable shared by every REST-backed provider adapter
// (qobuzstream, tidalflow, deezerbeam): a ranged GET streamed to a file
// with progress callbacks, grounded on the teacher's FetchTrack.
package httpstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrUnexpectedHTTPStatus is returned when the server rejects the
// ranged GET outright.
var ErrUnexpectedHTTPStatus = errors.New("httpstream: unexpected HTTP status")

// DefaultClient returns a plain http.Client suitable for byte transfers
// against pre-signed URLs that need no provider-specific auth or
// cookies (e.g. soundcloudwave's scraped, pre-signed stream URLs).
func DefaultClient() *http.Client {
	return &http.Client{Timeout: 0}
}

// progressWriter tees writes through onProgress before forwarding them
// to the underlying file, so the caller's progress bar advances as
// bytes land on disk rather than as bytes leave the socket.
type progressWriter struct {
	file       *os.File
	onProgress func(int64)
	written    int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)

	if w.onProgress != nil {
		w.onProgress(w.written)
	}

	return n, err
}

// ToFile performs a ranged GET against url and streams the response
// body to path, invoking onProgress after each chunk is written.
func ToFile(ctx context.Context, client *http.Client, url, path string, onProgress func(int64)) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("httpstream: %w", err)
	}

	request.Header.Add("Range", "bytes=0-")

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("httpstream: %w", err)
	}
	defer response.Body.Close() //nolint:errcheck // best-effort close after streaming completes or fails

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	out, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // audio files are not executable content
	if err != nil {
		return fmt.Errorf("httpstream: create %s: %w", path, err)
	}
	defer out.Close() //nolint:errcheck // flushed by the explicit Sync below; Close error here is not actionable

	writer := &progressWriter{file: out, onProgress: onProgress}

	if _, err := io.Copy(writer, response.Body); err != nil {
		os.Remove(path) //nolint:errcheck // best-effort cleanup of a partial file

		return fmt.Errorf("httpstream: copy body: %w", err)
	}

	return out.Sync()
}
