package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const dashboardHTML = `<html><body>
<table>
  <tbody>
    <tr>
      <td>12:31:05</td>
      <td>Bullish</td>
      <td title="Newer headline with the untruncated full text">Newer headline with the…</td>
      <td>AAPL, MSFT</td>
      <td>Technology</td>
    </tr>
    <tr>
      <td>12:30:01</td>
      <td>Bearish</td>
      <td>Older headline</td>
      <td>-</td>
      <td>00</td>
    </tr>
    <tr>
      <td>12:29:55</td>
      <td>Neutral</td>
      <td>Third headline</td>
      <td>TSLA</td>
      <td>Autos</td>
    </tr>
  </tbody>
</table>
</body></html>`

func testDashboard(t *testing.T, pageURL, payloadURL string) *Dashboard {
	t.Helper()
	return NewDashboard(Options{
		URL:               pageURL,
		PayloadURL:        payloadURL,
		Timeout:           time.Second,
		PlaceholderValues: []string{"00", "-"},
	}, zerolog.Nop())
}

func TestFetchRecordsParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dashboardHTML))
	}))
	defer srv.Close()

	d := testDashboard(t, srv.URL, "")

	records, err := d.FetchRecords(context.Background(), 10)
	if err != nil {
		t.Fatalf("抓取不应报错: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("期望 3 条记录, 实际 %d", len(records))
	}

	first := records[0]
	if first.Time != "12:31:05" || first.Sentiment != "Bullish" {
		t.Fatalf("首行字段不正确: %#v", first)
	}
	if first.Summary != "Newer headline with the untruncated full text" {
		t.Fatalf("被截断的 summary 应从 title 属性恢复: %q", first.Summary)
	}
	if len(first.Tickers) != 2 || first.Tickers[0] != "AAPL" || first.Tickers[1] != "MSFT" {
		t.Fatalf("tickers 解析不正确: %#v", first.Tickers)
	}

	second := records[1]
	if len(second.Tickers) != 0 {
		t.Fatalf("占位 ticker 应为空列表: %#v", second.Tickers)
	}
	if second.Sector != "" {
		t.Fatalf("占位 sector 应归一为空: %q", second.Sector)
	}
}

func TestFetchRecordsRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dashboardHTML))
	}))
	defer srv.Close()

	d := testDashboard(t, srv.URL, "")

	records, err := d.FetchRecords(context.Background(), 2)
	if err != nil {
		t.Fatalf("抓取不应报错: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("limit=2 时应返回 2 条, 实际 %d", len(records))
	}
}

func TestFetchRecordsDashboardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := testDashboard(t, srv.URL, "")

	if _, err := d.FetchRecords(context.Background(), 10); err == nil {
		t.Fatal("仪表盘返回错误状态时应为致命错误")
	}
}

func TestFetchRecordsPayloadMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dashboardHTML))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"text": "Older headline plus the rest of the tweet body"},
			{"text": "00"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := testDashboard(t, srv.URL, srv.URL+"/payload")

	records, err := d.FetchRecords(context.Background(), 10)
	if err != nil {
		t.Fatalf("抓取不应报错: %v", err)
	}

	if records[1].FullTweet != "Older headline plus the rest of the tweet body" {
		t.Fatalf("side payload 应按前缀匹配填充 fullTweet: %q", records[1].FullTweet)
	}
	if records[2].FullTweet != "" {
		t.Fatalf("无匹配时 fullTweet 应为空: %q", records[2].FullTweet)
	}
}

func TestFetchRecordsPayloadUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dashboardHTML))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := testDashboard(t, srv.URL, srv.URL+"/payload")

	records, err := d.FetchRecords(context.Background(), 10)
	if err != nil {
		t.Fatalf("payload 不可用应降级而非报错: %v", err)
	}
	for _, rec := range records {
		if rec.FullTweet != "" {
			t.Fatalf("降级时 fullTweet 应为空: %#v", rec)
		}
	}
}
