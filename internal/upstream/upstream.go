// Package upstream fetches announced runs from the calendar feed that the
// host servers publish. Parsing rules for the announcements themselves
// live upstream; this layer only maps feed items onto Run records.
package upstream

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"foraybot/internal/model"
	"foraybot/internal/raid"
	"foraybot/pkg/logx"
)

// Feed lists upcoming runs for one category, restricted to the given
// sources, within windowDays of now. Source order in the result follows
// the order of the sources argument.
type Feed interface {
	ListRuns(ctx context.Context, category raid.Category, sources []string, windowDays int) (model.GroupedRuns, error)
}

// extension namespace used by the calendar feed for run metadata.
const extNamespace = "foray"

type Config struct {
	// BaseURL is the feed root; per-source category feeds live under
	// {BaseURL}/{source}/{category}.rss.
	BaseURL string
	Timeout time.Duration
}

// HTTPClient is the subset of http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements Feed over the RSS calendar feeds.
type Client struct {
	cfg    Config
	client HTTPClient
	parser *gofeed.Parser
	log    logx.Logger

	now func() time.Time
}

func NewClient(cfg Config, client HTTPClient, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client, parser: gofeed.NewParser(), log: log, now: time.Now}
}

func (c *Client) ListRuns(ctx context.Context, category raid.Category, sources []string, windowDays int) (model.GroupedRuns, error) {
	var grouped model.GroupedRuns
	if !raid.Valid(category) {
		return grouped, fmt.Errorf("unknown category %q", category)
	}

	now := c.now()
	horizon := now.AddDate(0, 0, windowDays)
	for _, source := range sources {
		feed, err := c.fetch(ctx, source, category)
		if err != nil {
			return model.GroupedRuns{}, fmt.Errorf("fetch %s/%s: %w", source, category, err)
		}

		var runs []model.Run
		for _, item := range feed.Items {
			r, ok := c.itemToRun(item)
			if !ok {
				continue
			}
			if r.Start.Before(now) || r.Start.After(horizon) {
				continue
			}
			runs = append(runs, r)
		}
		grouped.Add(source, runs)
	}
	return grouped, nil
}

func (c *Client) fetch(ctx context.Context, source string, category raid.Category) (*gofeed.Feed, error) {
	u := fmt.Sprintf("%s/%s/%s.rss?filter=%s",
		c.cfg.BaseURL, url.PathEscape(source), category, url.QueryEscape(raid.SourceFilter(category)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "foraybot/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// itemToRun maps one feed item onto a Run. Items without a parseable
// start instant are skipped; everything else degrades to optional fields.
func (c *Client) itemToRun(item *gofeed.Item) (model.Run, bool) {
	startRaw := extValue(item, "start")
	if startRaw == "" {
		c.log.Debug("feed item missing start, skipping", logx.String("guid", item.GUID))
		return model.Run{}, false
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		c.log.Debug("feed item has invalid start, skipping",
			logx.String("guid", item.GUID), logx.String("start", startRaw))
		return model.Run{}, false
	}

	r := model.Run{
		ID:            itemID(item),
		Type:          item.Title,
		Start:         start,
		DataCenter:    extValue(item, "datacenter"),
		ReferenceLink: item.Link,
	}
	if item.PublishedParsed != nil {
		r.Created = *item.PublishedParsed
	}
	return r, true
}

func extValue(item *gofeed.Item, field string) string {
	exts, ok := item.Extensions[extNamespace]
	if !ok {
		return ""
	}
	vals := exts[field]
	if len(vals) == 0 {
		return ""
	}
	return vals[0].Value
}

// itemID returns the item GUID, hashing title+link when the feed omits it.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
