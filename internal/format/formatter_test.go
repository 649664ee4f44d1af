package format

import (
	"strings"
	"testing"

	"news-webhook-relay/internal/record"
)

func TestSentimentEmojiPriority(t *testing.T) {
	cases := map[string]string{
		"Bullish":          "🟢",
		"somewhat bullish": "🟢",
		"BEARISH":          "🔴",
		"Neutral":          "⚪️",
		"unknown label":    "⚫️",
		"":                 "⚫️",
	}
	for input, want := range cases {
		if got := SentimentEmoji(input); got != want {
			t.Fatalf("sentiment %q: 期望 %s, 实际 %s", input, want, got)
		}
	}
}

func TestRenderTickerLine(t *testing.T) {
	f := New(Options{})
	body := f.compose(record.RawRecord{
		Time:      "10:00",
		Sentiment: "Bullish",
		Summary:   "headline",
		Tickers:   []string{"aapl", "AAPL", "msft", "not a ticker!!", "-"},
	})

	if !strings.Contains(body, "[AAPL](https://www.tradingview.com/chart/?symbol=AAPL)") {
		t.Fatalf("ticker 应渲染为图表链接: %s", body)
	}
	if strings.Count(body, "AAPL") != 2 {
		t.Fatalf("重复 ticker 应去重: %s", body)
	}
	if strings.Contains(body, "not a ticker") {
		t.Fatal("非法 ticker 应被过滤")
	}
}

func TestRenderOmitsEmptyTickerAndSectorLines(t *testing.T) {
	f := New(Options{})
	body := f.compose(record.RawRecord{
		Time:      "10:00",
		Sentiment: "Neutral",
		Summary:   "headline",
		Tickers:   []string{"-"},
		Sector:    "-",
	})

	if strings.Contains(body, "Sector:") {
		t.Fatal("占位 sector 不应渲染")
	}
	if !strings.HasPrefix(body, "10:00") {
		t.Fatalf("无头部行时正文应直接以时间行开头: %s", body)
	}
}

func TestRenderEmitsEmptyFullTweetPrefix(t *testing.T) {
	f := New(Options{})
	body := f.compose(record.RawRecord{
		Time:      "10:00",
		Sentiment: "Neutral",
		Summary:   "headline",
	})

	if !strings.Contains(body, "Full tweet: ") {
		t.Fatalf("fullTweet 为空时仍应输出前缀行: %s", body)
	}
}

func TestRenderAppendsTagAndSourceLink(t *testing.T) {
	f := New(Options{Tag: "#news", SourceLink: "https://dashboard.example.com"})
	body := f.compose(record.RawRecord{Time: "10:00", Sentiment: "Neutral", Summary: "headline"})

	if !strings.Contains(body, "https://dashboard.example.com") {
		t.Fatal("正文应包含源站链接")
	}
	if !strings.HasSuffix(body, "#news") {
		t.Fatalf("标签后缀应在末尾: %s", body)
	}
}

func TestSplitRespectsCeiling(t *testing.T) {
	line := strings.Repeat("word ", 40)
	text := strings.TrimSpace(strings.Repeat(line+"\n", 60))

	limit := 500
	chunks := Split(text, limit)

	if len(chunks) < 2 {
		t.Fatalf("超长文本应被切分, 实际 %d 块", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > limit {
			t.Fatalf("第 %d 块长度 %d 超过上限 %d", i, len(chunk), limit)
		}
		if chunk != strings.TrimSpace(chunk) {
			t.Fatalf("块应去除首尾空白: %q", chunk)
		}
	}
}

func TestSplitReassembly(t *testing.T) {
	line := strings.Repeat("alpha beta gamma ", 20)
	text := strings.TrimSpace(strings.Repeat(line+"\n", 30))

	chunks := Split(text, 400)

	joined := strings.Join(chunks, " ")
	normalise := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalise(joined) != normalise(text) {
		t.Fatal("按序拼接的块应还原原文 (空白折叠后)")
	}
}

func TestSplitHardCutWithoutBreakPoints(t *testing.T) {
	text := strings.Repeat("x", 1000)
	chunks := Split(text, 300)

	for i, chunk := range chunks {
		if len(chunk) > 300 {
			t.Fatalf("第 %d 块超过上限: %d", i, len(chunk))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("无断点时硬切分应无损")
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := Split("short", 100)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("短文本应原样返回单块: %#v", chunks)
	}
}

func TestPartPrefix(t *testing.T) {
	if PartPrefix(1, 1) != "" {
		t.Fatal("单块消息不应有 Part 前缀")
	}
	if PartPrefix(2, 3) != "Part 2/3\n" {
		t.Fatalf("Part 前缀格式不正确: %q", PartPrefix(2, 3))
	}
}

func TestRenderChunkBound(t *testing.T) {
	f := New(Options{MessageLimit: 600, Tag: "#tag"})
	rec := record.RawRecord{
		Time:      "10:00",
		Sentiment: "Bullish",
		Summary:   strings.Repeat("long headline text ", 50),
		FullTweet: strings.Repeat("full tweet body ", 80),
		Tickers:   []string{"AAPL"},
		Sector:    "Tech",
	}

	chunks := f.Render(rec)
	if len(chunks) < 2 {
		t.Fatalf("超长消息应产生多块, 实际 %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 600 {
			t.Fatalf("第 %d 块长度 %d 超过上限", i, len(chunk))
		}
	}
}
