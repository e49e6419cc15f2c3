package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maxrule98/simple-bot/internal/market"
)

const klineBatch = 1000

// KlineClient fetches historical candles from the public REST endpoint. It
// backfills the candle store so warmup and replay have data to work with.
type KlineClient struct {
	BaseURL string
	HTTP    *http.Client
	// Batch caps rows per request; zero means the endpoint maximum.
	Batch int

	limiter *rate.Limiter
}

// NewKlineClient builds a client against the given REST base URL.
func NewKlineClient(baseURL string) *KlineClient {
	return &KlineClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		// Public market data weight allows comfortably more; stay polite.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Klines pages through the kline endpoint and returns all bars with open time
// in [from, until), oldest first. A zero until means everything up to now.
func (c *KlineClient) Klines(ctx context.Context, instrument string, tf market.Timeframe, from, until time.Time) ([]market.Bar, error) {
	batch := c.Batch
	if batch <= 0 || batch > klineBatch {
		batch = klineBatch
	}

	var bars []market.Bar
	cursor := from
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		rows, err := c.fetch(ctx, instrument, tf, cursor, until, batch)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			bar, err := parseKlineRow(row)
			if err != nil {
				return nil, fmt.Errorf("klines %s %s: %w", instrument, tf, err)
			}
			bars = append(bars, bar)
		}
		cursor = bars[len(bars)-1].OpenTime.Add(tf.Duration())
		if len(rows) < batch {
			break
		}
		if !until.IsZero() && !cursor.Before(until) {
			break
		}
	}
	return bars, nil
}

func (c *KlineClient) fetch(ctx context.Context, instrument string, tf market.Timeframe, from, until time.Time, batch int) ([][]any, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(streamSymbol(instrument)))
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(batch))
	if !from.IsZero() {
		params.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !until.IsZero() {
		// The endpoint treats endTime as inclusive; the range here is not.
		params.Set("endTime", strconv.FormatInt(until.UnixMilli()-1, 10))
	}

	u := fmt.Sprintf("%s/api/v3/klines?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines status %d", res.StatusCode)
	}
	var rows [][]any
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *KlineClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// parseKlineRow decodes one kline array row:
// [openTime, open, high, low, close, volume, ...], numbers as strings.
func parseKlineRow(row []any) (market.Bar, error) {
	if len(row) < 6 {
		return market.Bar{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	ms, ok := row[0].(float64)
	if !ok {
		return market.Bar{}, fmt.Errorf("kline open time %v is not a number", row[0])
	}
	var vals [5]float64
	for i := 0; i < 5; i++ {
		s, ok := row[i+1].(string)
		if !ok {
			return market.Bar{}, fmt.Errorf("kline field %d %v is not a string", i+1, row[i+1])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		vals[i] = f
	}
	return market.Bar{
		OpenTime: time.UnixMilli(int64(ms)).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}
