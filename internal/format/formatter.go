package format

import (
	"fmt"
	"regexp"
	"strings"

	"news-webhook-relay/internal/record"
)

const (
	// DefaultMessageLimit is the platform message-length ceiling applied when
	// no explicit limit is configured.
	DefaultMessageLimit = 1990

	// splitThreshold is the fraction of the ceiling past which a newline or
	// space is considered an acceptable break point.
	splitThreshold = 0.7

	defaultChartBaseURL = "https://www.tradingview.com/chart/?symbol="
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]{1,12}$`)

// Options parameterise message rendering.
type Options struct {
	MessageLimit int
	Tag          string
	SourceLink   string
	ChartBaseURL string
}

// Formatter renders a record into one or more sink-ready text chunks.
type Formatter struct {
	opts Options
}

// New constructs a Formatter, filling in defaults for unset options.
func New(opts Options) *Formatter {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	if opts.ChartBaseURL == "" {
		opts.ChartBaseURL = defaultChartBaseURL
	}
	return &Formatter{opts: opts}
}

// Render composes the canonical message body for a record and splits it into
// chunks that each fit the configured ceiling. The result is never empty.
func (f *Formatter) Render(r record.RawRecord) []string {
	body := f.compose(r)
	return Split(body, f.opts.MessageLimit)
}

func (f *Formatter) compose(r record.RawRecord) string {
	builder := strings.Builder{}

	tickerLine := f.renderTickers(r.Tickers)
	sectorLine := renderSector(r.Sector)

	if tickerLine != "" {
		builder.WriteString(tickerLine)
		builder.WriteString("\n")
	}
	if sectorLine != "" {
		builder.WriteString(sectorLine)
		builder.WriteString("\n")
	}
	if tickerLine != "" || sectorLine != "" {
		builder.WriteString("\n")
	}

	builder.WriteString(fmt.Sprintf("%s (%s %s)\n", r.Time, SentimentEmoji(r.Sentiment), r.Sentiment))
	builder.WriteString(r.Summary)
	builder.WriteString("\n\n")
	// The prefix is emitted even when the tweet text is empty.
	builder.WriteString("Full tweet: ")
	builder.WriteString(r.FullTweet)
	builder.WriteString("\n")
	if f.opts.SourceLink != "" {
		builder.WriteString(f.opts.SourceLink)
		builder.WriteString("\n")
	}
	if f.opts.Tag != "" {
		builder.WriteString(f.opts.Tag)
	}

	return strings.TrimRight(builder.String(), "\n")
}

// SentimentEmoji classifies a free-text sentiment label by case-insensitive
// substring match. First matching category wins, in fixed priority order.
func SentimentEmoji(sentiment string) string {
	lowered := strings.ToLower(sentiment)
	switch {
	case strings.Contains(lowered, "bullish"):
		return "🟢"
	case strings.Contains(lowered, "bearish"):
		return "🔴"
	case strings.Contains(lowered, "neutral"):
		return "⚪️"
	default:
		return "⚫️"
	}
}

// renderTickers uppercases, validates, and de-duplicates symbols, then
// renders them as clickable chart links. An empty or fully invalid list
// yields an empty string so the line is omitted, not shown empty.
func (f *Formatter) renderTickers(tickers []string) string {
	links := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))

	for _, raw := range tickers {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" || symbol == "-" {
			continue
		}
		if !tickerPattern.MatchString(symbol) {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		links = append(links, fmt.Sprintf("[%s](%s%s)", symbol, f.opts.ChartBaseURL, symbol))
	}

	if len(links) == 0 {
		return ""
	}
	return strings.Join(links, " ")
}

func renderSector(sector string) string {
	trimmed := strings.TrimSpace(sector)
	if trimmed == "" || trimmed == "-" {
		return ""
	}
	return "Sector: " + trimmed
}

// PartPrefix returns the marker prepended to chunk i (1-based) of total when
// a message was split. Single-chunk messages carry no marker.
func PartPrefix(i, total int) string {
	if total <= 1 {
		return ""
	}
	return fmt.Sprintf("Part %d/%d\n", i, total)
}

// Split cuts text into chunks no longer than limit. It prefers breaking at
// the last newline past 70% of the limit, then the last space past 70%, and
// hard-cuts at the limit as a last resort. Chunks are trimmed of surrounding
// whitespace.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	chunks := []string{}
	remaining := text
	threshold := int(float64(limit) * splitThreshold)

	for len(remaining) > limit {
		window := remaining[:limit]
		cut := strings.LastIndex(window, "\n")
		if cut <= threshold {
			cut = strings.LastIndex(window, " ")
		}
		if cut <= threshold {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}

	chunks = append(chunks, strings.TrimSpace(remaining))
	return chunks
}
