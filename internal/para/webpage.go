package para

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxPageBody caps how much of a resource page is read for enrichment.
const maxPageBody = 1 << 20 // 1MB

// PageInfo is the metadata extracted from a resource page.
type PageInfo struct {
	Title       string
	Description string
}

// FetchPageInfo downloads a resource page and extracts its title and meta
// description.
func FetchPageInfo(ctx context.Context, client *http.Client, url string) (*PageInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Sage/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}

	return ParsePageInfo(io.LimitReader(resp.Body, maxPageBody))
}

// ParsePageInfo extracts page metadata from an HTML document.
func ParsePageInfo(r io.Reader) (*PageInfo, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	info := &PageInfo{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find(`meta[name="description"], meta[property="og:description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			info.Description = strings.TrimSpace(content)
			return false
		}
		return true
	})

	return info, nil
}
