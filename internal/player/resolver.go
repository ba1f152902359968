package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const resolveTimeout = 30 * time.Second

var errInvalidURL = errors.New("invalid or empty URL")

// Resolver follows redirect chains so the player is handed the final media
// URL instead of a tracking shim. Podcast CDNs routinely answer HEAD with an
// error, so a ranged GET is the fallback.
type Resolver struct {
	client *retryablehttp.Client
}

func NewResolver() *Resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = resolveTimeout
	client.Logger = nil
	return &Resolver{client: client}
}

// Resolve cleans and validates url, then returns the address the server ends
// up at after redirects. Only http and https URLs are accepted.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	cleaned := strings.TrimSpace(rawURL)
	if cleaned == "" {
		return "", errInvalidURL
	}
	if !strings.HasPrefix(cleaned, "http://") && !strings.HasPrefix(cleaned, "https://") {
		return "", fmt.Errorf("%w: %s", errInvalidURL, cleaned)
	}

	if final, err := r.attempt(ctx, http.MethodHead, cleaned, ""); err == nil {
		return final, nil
	}
	if final, err := r.attempt(ctx, http.MethodGet, cleaned, "bytes=0-1023"); err == nil {
		return final, nil
	}

	// Unresolvable is not fatal; the player may still be able to stream it.
	return cleaned, nil
}

func (r *Resolver) attempt(ctx context.Context, method, url, byteRange string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "audio/mpeg, audio/mp4, audio/*, application/octet-stream")
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("resolve %s: status %d", url, resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}
