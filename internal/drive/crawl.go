package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
)

// crawlDedupWindow is the per-URL re-crawl dedup window spec.md §4.6
// names ("idempotent with a 5-minute dedup window").
const crawlDedupWindow = 5 * time.Minute

// Crawler fetches a bounded set of pages from a website and extracts
// plain text for KB indexing, using plain net/http GETs and goquery's
// static-HTML parser rather than a headless browser, since crawl
// depth/pages are bounded and no JS execution is specified.
type Crawler struct {
	httpClient *http.Client
	sem        *semaphore.Weighted // caps global concurrent crawls, default 1 (spec.md §5/§9)

	mu   sync.Mutex
	last map[string]time.Time // url -> last crawl time, for the dedup window
}

// NewCrawler builds a Crawler with maxConcurrent simultaneous crawls;
// values below 1 become 1.
func NewCrawler(maxConcurrent int64) *Crawler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Crawler{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sem:        semaphore.NewWeighted(maxConcurrent),
		last:       make(map[string]time.Time),
	}
}

// CrawlPage is one page's extracted content.
type CrawlPage struct {
	URL   string
	Title string
	Text  string
}

// ShouldCrawl reports whether url is outside the dedup window.
func (c *Crawler) ShouldCrawl(url string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[url]
	return !ok || now.Sub(last) > crawlDedupWindow
}

// Crawl fetches up to maxPages starting at rootURL, following absolute
// http(s) links to the same host as the page they appear on, up to depth
// levels, holding one slot of the global concurrency semaphore for the
// duration. When every slot is taken, Crawl returns an error at once
// instead of waiting for a slot.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, depth, maxPages int) ([]CrawlPage, error) {
	if !c.sem.TryAcquire(1) {
		return nil, fmt.Errorf("drive: crawl of %s dropped: concurrent crawl limit reached", rootURL)
	}
	defer c.sem.Release(1)

	visited := map[string]bool{}
	var pages []CrawlPage
	queue := []struct {
		url   string
		depth int
	}{{rootURL, 0}}

	for len(queue) > 0 && len(pages) < maxPages {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.url] {
			continue
		}
		visited[cur.url] = true

		page, links, err := c.fetchOne(ctx, cur.url)
		if err != nil {
			continue
		}
		pages = append(pages, page)
		c.mu.Lock()
		c.last[rootURL] = time.Now()
		c.mu.Unlock()

		if cur.depth >= depth {
			continue
		}
		for _, l := range links {
			if !visited[l] {
				queue = append(queue, struct {
					url   string
					depth int
				}{l, cur.depth + 1})
			}
		}
	}
	return pages, nil
}

func (c *Crawler) fetchOne(ctx context.Context, url string) (CrawlPage, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CrawlPage{}, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CrawlPage{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return CrawlPage{}, nil, fmt.Errorf("drive: crawl %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return CrawlPage{}, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return CrawlPage{}, nil, err
	}

	title := doc.Find("title").First().Text()
	doc.Find("script, style, nav, footer").Remove()
	text := doc.Find("body").Text()

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && isSameHostHTTPLink(url, href) {
			links = append(links, href)
		}
	})

	return CrawlPage{URL: url, Title: title, Text: text}, links, nil
}

func isSameHostHTTPLink(pageURL, href string) bool {
	if !hasPrefix(href, "http://") && !hasPrefix(href, "https://") {
		return false
	}
	page, err := neturl.Parse(pageURL)
	if err != nil {
		return false
	}
	link, err := neturl.Parse(href)
	return err == nil && link.Host == page.Host
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}
