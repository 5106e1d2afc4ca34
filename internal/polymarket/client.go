// Package polymarket fetches event and trade data from the public Polymarket
// APIs and normalizes it for the analysis pipeline. Every failure crosses the
// package boundary as a *ClientError value so callers can feed it back to the
// model as tool output instead of aborting the run.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	gammaBaseURL = "https://gamma-api.polymarket.com"
	dataBaseURL  = "https://data-api.polymarket.com"

	// Only cash trades at or above this notional are fetched; smaller fills
	// are noise for position analysis.
	minTradeNotional = "1000"
)

// ClientError is a tagged data-fetch failure. It marshals to the
// {"error": reason} shape the completion model receives as tool output.
type ClientError struct {
	Reason string `json:"error"`
}

func (e *ClientError) Error() string { return e.Reason }

func errf(format string, args ...any) *ClientError {
	return &ClientError{Reason: fmt.Sprintf(format, args...)}
}

// Event is a normalized Polymarket event.
type Event struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Liquidity   float64  `json:"liquidity"`
	Volume      float64  `json:"volume"`
	Volume24hr  float64  `json:"volume24hr"`
	Tags        []string `json:"tags,omitempty"`
	Markets     []Market `json:"markets"`
}

// Market is a single condition inside an event. When the upstream
// outcome/price payload cannot be decoded as paired lists, Probabilities is
// left empty and the raw strings are passed through instead.
type Market struct {
	Question       string             `json:"question"`
	ConditionID    string             `json:"conditionId"`
	Status         string             `json:"status"`
	ResolutionDate string             `json:"resolutionDate,omitempty"`
	Probabilities  map[string]float64 `json:"probabilities,omitempty"`
	RawOutcomes    string             `json:"rawOutcomes,omitempty"`
	RawPrices      string             `json:"rawOutcomePrices,omitempty"`
	Volume         float64            `json:"volume"`
}

// Client talks to the gamma (events) and data (trades) APIs.
type Client struct {
	gamma *resty.Client
	data  *resty.Client
}

func NewClient() *Client {
	return newClient(gammaBaseURL, dataBaseURL)
}

func newClient(gammaURL, dataURL string) *Client {
	return &Client{
		gamma: resty.New().SetBaseURL(gammaURL).SetTimeout(30 * time.Second),
		data:  resty.New().SetBaseURL(dataURL).SetTimeout(30 * time.Second),
	}
}

// SlugFromURL extracts the event slug: the path segment following the literal
// "event" marker, with any trailing "?tid=..." share suffix stripped.
func SlugFromURL(link string) (string, error) {
	segments := strings.Split(link, "/")
	for i, segment := range segments {
		if segment != "event" {
			continue
		}
		if i+1 >= len(segments) {
			break
		}
		slug := segments[i+1]
		if idx := strings.Index(slug, "?tid="); idx != -1 {
			slug = slug[:idx]
		}
		if slug == "" {
			break
		}
		return slug, nil
	}
	return "", errf("slug extraction failed: no event segment in %q", link)
}

// FetchEvent resolves the link to a slug, queries the gamma events endpoint
// and normalizes the first match.
func (c *Client) FetchEvent(ctx context.Context, link string) (*Event, error) {
	slug, err := SlugFromURL(link)
	if err != nil {
		return nil, err
	}

	var events []rawEvent
	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, errf("event request failed: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, errf("upstream non-success status: %s", resp.Status())
	}
	if len(events) == 0 {
		return nil, errf("not found: no event for slug %q", slug)
	}

	return normalizeEvent(&events[0]), nil
}

// FetchTrades returns the raw list of large cash trades for one condition,
// unmodified.
func (c *Client) FetchTrades(ctx context.Context, conditionID string) (json.RawMessage, error) {
	if conditionID == "" {
		return nil, errf("missing id")
	}

	resp, err := c.data.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"market":       conditionID,
			"filterType":   "CASH",
			"filterAmount": minTradeNotional,
		}).
		Get("/trades")
	if err != nil {
		return nil, errf("trades request failed: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, errf("upstream non-success status: %s", resp.Status())
	}

	return json.RawMessage(resp.Body()), nil
}

// rawEvent mirrors the gamma wire shape. Numeric fields arrive as either
// JSON numbers or numeric strings depending on the field and API version.
type rawEvent struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	Closed      bool       `json:"closed"`
	Liquidity   flexNumber `json:"liquidity"`
	Volume      flexNumber `json:"volume"`
	Volume24hr  flexNumber `json:"volume24hr"`
	Tags        []struct {
		Label string `json:"label"`
	} `json:"tags"`
	Markets []rawMarket `json:"markets"`
}

type rawMarket struct {
	Question            string     `json:"question"`
	ConditionID         string     `json:"conditionId"`
	Closed              bool       `json:"closed"`
	EndDate             string     `json:"endDate"`
	Outcomes            string     `json:"outcomes"`
	OutcomePrices       string     `json:"outcomePrices"`
	Volume              flexNumber `json:"volume"`
	UMAResolutionStatus string     `json:"umaResolutionStatus"`
}

func normalizeEvent(raw *rawEvent) *Event {
	event := &Event{
		Title:       raw.Title,
		Description: raw.Description,
		Status:      statusOf(raw.Active, raw.Closed),
		Liquidity:   float64(raw.Liquidity),
		Volume:      float64(raw.Volume),
		Volume24hr:  float64(raw.Volume24hr),
		Markets:     make([]Market, 0, len(raw.Markets)),
	}
	for _, tag := range raw.Tags {
		if tag.Label != "" {
			event.Tags = append(event.Tags, tag.Label)
		}
	}
	for i := range raw.Markets {
		event.Markets = append(event.Markets, normalizeMarket(&raw.Markets[i]))
	}
	return event
}

func normalizeMarket(raw *rawMarket) Market {
	market := Market{
		Question:       raw.Question,
		ConditionID:    raw.ConditionID,
		Status:         marketStatusOf(raw),
		ResolutionDate: raw.EndDate,
		Volume:         float64(raw.Volume),
	}

	probs, err := zipProbabilities(raw.Outcomes, raw.OutcomePrices)
	if err != nil {
		// Degrade this market to passthrough rather than failing the fetch.
		market.RawOutcomes = raw.Outcomes
		market.RawPrices = raw.OutcomePrices
		return market
	}
	market.Probabilities = probs
	return market
}

// zipProbabilities pairs the JSON-encoded outcome and price lists, e.g.
// `["Yes","No"]` with `["0.62","0.38"]`.
func zipProbabilities(outcomesJSON, pricesJSON string) (map[string]float64, error) {
	var outcomes, prices []string
	if err := json.Unmarshal([]byte(outcomesJSON), &outcomes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pricesJSON), &prices); err != nil {
		return nil, err
	}
	if len(outcomes) == 0 || len(outcomes) != len(prices) {
		return nil, fmt.Errorf("outcomes/prices length mismatch: %d vs %d", len(outcomes), len(prices))
	}

	probs := make(map[string]float64, len(outcomes))
	for i, outcome := range outcomes {
		p, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			return nil, err
		}
		probs[outcome] = p
	}
	return probs, nil
}

func statusOf(active, closed bool) string {
	if closed || !active {
		return "closed"
	}
	return "active"
}

func marketStatusOf(raw *rawMarket) string {
	if strings.EqualFold(raw.UMAResolutionStatus, "resolved") {
		return "resolved"
	}
	if raw.Closed {
		return "closed"
	}
	return "active"
}

// flexNumber accepts both JSON numbers and numeric strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}
