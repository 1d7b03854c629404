// internal/catalog/preview.go extracts the 30 second preview URL embedded in a
// Spotify track page and estimates its playable duration. Spotify serves some
// previews at ~17s instead of ~29s; those are rejected upstream.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/html"
)

// previewMinDuration is the shortest preview accepted for a round. Shorter
// clips would end before the guessing window closes.
const previewMinDuration = 28 * time.Second

// previewBitrateBytesPerSec approximates the 128 kbps MP3 encoding Spotify
// uses for previews, letting Content-Length stand in for a real decode.
const previewBitrateBytesPerSec = 16000

// PreviewURL scrapes the og:audio meta tag from a track's public page.
// Returns "" when the page carries no preview.
func (g *Generator) PreviewURL(ctx context.Context, trackPageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackPageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch track page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("track page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse track page: %w", err)
	}
	return findOgAudio(doc), nil
}

func findOgAudio(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var property, content string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "property":
				property = attr.Val
			case "content":
				content = attr.Val
			}
		}
		if property == "og:audio" {
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if url := findOgAudio(c); url != "" {
			return url
		}
	}
	return ""
}

// previewDuration estimates the clip length from the file size reported by a
// HEAD request. A missing or zero Content-Length yields a zero duration, which
// fails the minimum check.
func (g *Generator) previewDuration(ctx context.Context, previewURL string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, previewURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to probe preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("preview probe returned status %d", resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return 0, nil
	}
	return time.Duration(resp.ContentLength/previewBitrateBytesPerSec) * time.Second, nil
}
