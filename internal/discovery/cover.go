package discovery

import (
	"context"

	"streamgrab/internal/client/httpstream"
)

// fetchToFile downloads url to path with no provider-specific auth,
// reusing httpstream's plain byte-transfer client since cover art URLs
// are public and need no Range/retry sophistication beyond what
// ToFile already provides.
func fetchToFile(ctx context.Context, url, path string) error {
	return httpstream.ToFile(ctx, httpstream.DefaultClient(), url, path, nil)
}
