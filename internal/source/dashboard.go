package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"news-webhook-relay/internal/record"
)

const (
	newsRowSelector = "table tbody tr"
	defaultUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Options parameterise the dashboard adapter.
type Options struct {
	URL string
	// PayloadURL optionally points at the side-loaded JSON feed carrying the
	// long-form tweet texts the table truncates. Empty disables the lookup.
	PayloadURL string
	Timeout    time.Duration
	UserAgent  string
	// PlaceholderValues are sentinel strings the dashboard renders for absent
	// fields; they normalise to empty at this boundary.
	PlaceholderValues []string
}

// Dashboard scrapes the news table of the dashboard page over HTTP.
type Dashboard struct {
	opts         Options
	http         *resty.Client
	placeholders map[string]struct{}
	logger       zerolog.Logger
}

// NewDashboard constructs the dashboard adapter. The HTTP transport is
// wrapped with a Cloudflare bypass so bot-challenged deployments still serve
// the page.
func NewDashboard(opts Options, logger zerolog.Logger) *Dashboard {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if jar, err := cookiejar.New(nil); err == nil {
		client.SetCookieJar(jar)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUA
	}
	client.SetHeader("User-Agent", ua)

	placeholders := make(map[string]struct{}, len(opts.PlaceholderValues))
	for _, v := range opts.PlaceholderValues {
		placeholders[v] = struct{}{}
	}

	return &Dashboard{
		opts:         opts,
		http:         client,
		placeholders: placeholders,
		logger:       logger.With().Str("component", "dashboard_source").Logger(),
	}
}

// FetchRecords loads the dashboard and extracts up to limit news rows,
// newest-first as rendered. A non-2xx dashboard response is an error; a
// missing side payload only degrades FullTweet to empty.
func (d *Dashboard) FetchRecords(ctx context.Context, limit int) ([]record.RawRecord, error) {
	if d.opts.URL == "" {
		return nil, fmt.Errorf("source url not configured")
	}

	resp, err := d.http.R().SetContext(ctx).Get(d.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dashboard returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse dashboard html: %w", err)
	}

	payload := d.fetchPayload(ctx)

	records := make([]record.RawRecord, 0, limit)
	doc.Find(newsRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if limit > 0 && len(records) >= limit {
			return false
		}
		rec, ok := d.extractRow(row)
		if !ok {
			return true
		}
		rec.FullTweet = d.matchPayload(payload, rec.Summary)
		records = append(records, rec)
		return true
	})

	d.logger.Info().Int("records", len(records)).Msg("dashboard scraped")
	return records, nil
}

// extractRow maps one table row onto a RawRecord. Cell order: time,
// sentiment, summary, tickers, sector. The summary cell's title attribute is
// preferred when the display text was ellipsis-truncated.
func (d *Dashboard) extractRow(row *goquery.Selection) (record.RawRecord, bool) {
	cells := row.Find("td")
	if cells.Length() < 3 {
		return record.RawRecord{}, false
	}

	cellText := func(i int) string {
		return strings.TrimSpace(cells.Eq(i).Text())
	}

	summary := cellText(2)
	if title, ok := cells.Eq(2).Attr("title"); ok {
		title = strings.TrimSpace(title)
		if title != "" && (strings.HasSuffix(summary, "…") || strings.HasSuffix(summary, "...") || len(title) > len(summary)) {
			summary = title
		}
	}

	rec := record.RawRecord{
		Time:      cellText(0),
		Sentiment: cellText(1),
		Summary:   summary,
	}
	if rec.Time == "" && rec.Summary == "" {
		return record.RawRecord{}, false
	}

	if cells.Length() > 3 {
		for _, symbol := range strings.Split(cellText(3), ",") {
			symbol = strings.TrimSpace(symbol)
			if symbol == "" || d.isPlaceholder(symbol) {
				continue
			}
			rec.Tickers = append(rec.Tickers, symbol)
		}
	}
	if cells.Length() > 4 {
		sector := cellText(4)
		if !d.isPlaceholder(sector) {
			rec.Sector = sector
		}
	}

	return rec, true
}

type payloadEntry struct {
	Text string `json:"text"`
}

// fetchPayload loads the optional side feed. All failures are best-effort:
// the records still ship with an empty FullTweet.
func (d *Dashboard) fetchPayload(ctx context.Context) []payloadEntry {
	if d.opts.PayloadURL == "" {
		return nil
	}

	resp, err := d.http.R().SetContext(ctx).Get(d.opts.PayloadURL)
	if err != nil || resp.IsError() {
		d.logger.Warn().Str("url", d.opts.PayloadURL).Msg("side payload unavailable; full tweets degraded to empty")
		return nil
	}

	var entries []payloadEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		d.logger.Warn().Err(err).Msg("side payload unparseable; full tweets degraded to empty")
		return nil
	}
	return entries
}

// matchPayload pairs a displayed row with a payload entry by normalised
// prefix. No match yields an empty string, never an error.
func (d *Dashboard) matchPayload(entries []payloadEntry, summary string) string {
	if len(entries) == 0 {
		return ""
	}

	needle := normalise(summary)
	if needle == "" {
		return ""
	}

	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" || d.isPlaceholder(text) {
			continue
		}
		candidate := normalise(text)
		if strings.HasPrefix(candidate, needle) || strings.HasPrefix(needle, candidate) {
			return text
		}
	}
	return ""
}

func (d *Dashboard) isPlaceholder(v string) bool {
	_, ok := d.placeholders[strings.TrimSpace(v)]
	return ok
}

// normalise lowercases and strips the ellipsis markers the table appends to
// truncated text, so prefix comparison survives the truncation.
func normalise(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSuffix(v, "…")
	v = strings.TrimSuffix(v, "...")
	return strings.Join(strings.Fields(v), " ")
}

var _ Adapter = (*Dashboard)(nil)
