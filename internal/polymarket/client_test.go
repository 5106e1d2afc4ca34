package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func TestSlugFromURL(t *testing.T) {
	testCases := []struct {
		link    string
		want    string
		wantErr bool
	}{
		{link: "https://polymarket.com/event/foo-bar?tid=123", want: "foo-bar"},
		{link: "https://polymarket.com/event/foo-bar", want: "foo-bar"},
		{link: "https://polymarket.com/event/foo-bar/market-slug", want: "foo-bar"},
		{link: "https://polymarket.com/markets/foo-bar", wantErr: true},
		{link: "https://polymarket.com/event/", wantErr: true},
		{link: "https://polymarket.com/event", wantErr: true},
		{link: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := SlugFromURL(tc.link)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SlugFromURL(%q) expected error, got %q", tc.link, got)
			} else if !strings.Contains(err.Error(), "slug extraction failed") {
				t.Errorf("SlugFromURL(%q) error = %q, want tagged slug failure", tc.link, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SlugFromURL(%q) unexpected error: %v", tc.link, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SlugFromURL(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}

const eventFixture = `[{
	"title": "Will it happen?",
	"description": "A test event",
	"active": true,
	"closed": false,
	"liquidity": "125000.5",
	"volume": "2500000",
	"volume24hr": 34735.38,
	"tags": [{"label": "Politics"}, {"label": "Elections"}],
	"markets": [
		{
			"question": "Will it happen by June?",
			"conditionId": "0xabc",
			"closed": false,
			"endDate": "2026-06-30T00:00:00Z",
			"outcomes": "[\"Yes\", \"No\"]",
			"outcomePrices": "[\"0.62\", \"0.38\"]",
			"volume": "90000"
		},
		{
			"question": "Will it happen by December?",
			"conditionId": "0xdef",
			"closed": true,
			"umaResolutionStatus": "resolved",
			"endDate": "2025-12-31T00:00:00Z",
			"outcomes": "not-a-json-list",
			"outcomePrices": "[\"0.5\"]",
			"volume": "10"
		}
	]
}]`

func fixtureServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchEventNormalizes(t *testing.T) {
	server := fixtureServer(t, http.StatusOK, eventFixture)
	client := newClient(server.URL, server.URL)

	event, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/will-it-happen")
	if err != nil {
		t.Fatalf("FetchEvent failed: %v", err)
	}

	if event.Title != "Will it happen?" {
		t.Errorf("Title = %q", event.Title)
	}
	if event.Status != "active" {
		t.Errorf("Status = %q, want active", event.Status)
	}
	if event.Liquidity != 125000.5 || event.Volume != 2500000 || event.Volume24hr != 34735.38 {
		t.Errorf("Numbers not normalized: %+v", event)
	}
	if !reflect.DeepEqual(event.Tags, []string{"Politics", "Elections"}) {
		t.Errorf("Tags = %v", event.Tags)
	}
	if len(event.Markets) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(event.Markets))
	}

	first := event.Markets[0]
	if first.Status != "active" || first.ConditionID != "0xabc" {
		t.Errorf("First market = %+v", first)
	}
	wantProbs := map[string]float64{"Yes": 0.62, "No": 0.38}
	if !reflect.DeepEqual(first.Probabilities, wantProbs) {
		t.Errorf("Probabilities = %v, want %v", first.Probabilities, wantProbs)
	}
	if first.RawOutcomes != "" {
		t.Errorf("Expected no raw passthrough on a parsed market, got %q", first.RawOutcomes)
	}
}

func TestFetchEventDegradesBadMarket(t *testing.T) {
	server := fixtureServer(t, http.StatusOK, eventFixture)
	client := newClient(server.URL, server.URL)

	event, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/will-it-happen")
	if err != nil {
		t.Fatalf("FetchEvent failed: %v", err)
	}

	degraded := event.Markets[1]
	if degraded.Probabilities != nil {
		t.Errorf("Expected no probabilities for an unparseable market, got %v", degraded.Probabilities)
	}
	if degraded.RawOutcomes != "not-a-json-list" || degraded.RawPrices != `["0.5"]` {
		t.Errorf("Expected raw passthrough, got %+v", degraded)
	}
	if degraded.Status != "resolved" {
		t.Errorf("Status = %q, want resolved", degraded.Status)
	}
}

func TestFetchEventIsIdempotent(t *testing.T) {
	server := fixtureServer(t, http.StatusOK, eventFixture)
	client := newClient(server.URL, server.URL)

	first, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/will-it-happen")
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	second, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/will-it-happen")
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical results for an unchanged upstream")
	}
}

func TestFetchEventNotFound(t *testing.T) {
	server := fixtureServer(t, http.StatusOK, `[]`)
	client := newClient(server.URL, server.URL)

	_, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/nope")
	if err == nil {
		t.Fatal("Expected a not-found error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Error = %q, want tagged not-found", err)
	}
	if _, ok := err.(*ClientError); !ok {
		t.Errorf("Expected *ClientError, got %T", err)
	}
}

func TestFetchEventUpstreamError(t *testing.T) {
	server := fixtureServer(t, http.StatusBadGateway, `oops`)
	client := newClient(server.URL, server.URL)

	_, err := client.FetchEvent(context.Background(), "https://polymarket.com/event/foo")
	if err == nil {
		t.Fatal("Expected an upstream error")
	}
	if !strings.Contains(err.Error(), "upstream non-success status") {
		t.Errorf("Error = %q, want tagged upstream failure", err)
	}
}

func TestFetchTradesMissingID(t *testing.T) {
	client := newClient("http://unused", "http://unused")

	_, err := client.FetchTrades(context.Background(), "")
	if err == nil {
		t.Fatal("Expected a missing-id error")
	}
	if err.Error() != "missing id" {
		t.Errorf("Error = %q, want %q", err.Error(), "missing id")
	}
}

func TestFetchTradesPassthrough(t *testing.T) {
	body := `[{"proxyWallet":"0x1","side":"BUY","size":2000,"price":0.61}]`
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newClient(server.URL, server.URL)
	trades, err := client.FetchTrades(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchTrades failed: %v", err)
	}

	if string(trades) != body {
		t.Errorf("Expected raw passthrough, got %s", trades)
	}
	if gotQuery.Get("market") != "0xabc" || gotQuery.Get("filterType") != "CASH" || gotQuery.Get("filterAmount") != "1000" {
		t.Errorf("Unexpected query params: %v", gotQuery)
	}
}
