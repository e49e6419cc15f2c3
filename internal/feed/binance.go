package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/market"
)

// BinanceFeed streams klines (one websocket per timeframe) and optionally a
// partial-book depth stream, pushing everything onto the instance queue.
// Reconnects are rate limited so a flapping endpoint cannot spin.
type BinanceFeed struct {
	URL         string // e.g. wss://stream.binance.com:9443/ws
	Instrument  string // e.g. BTC/USDT
	Timeframes  []market.Timeframe
	DepthLevels int // 0 disables the depth stream
	Log         *zap.Logger

	dialer  *websocket.Dialer
	limiter *rate.Limiter
}

// NewBinanceFeed builds a live feed for one instrument.
func NewBinanceFeed(url, instrument string, tfs []market.Timeframe, depthLevels int, log *zap.Logger) *BinanceFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &BinanceFeed{
		URL:         url,
		Instrument:  instrument,
		Timeframes:  tfs,
		DepthLevels: depthLevels,
		Log:         log,
		dialer:      websocket.DefaultDialer,
		// One reconnect attempt per 2s, small burst for startup.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

// Run blocks until the context is cancelled. The queue is left open; the
// caller owns its lifecycle for live feeds.
func (f *BinanceFeed) Run(ctx context.Context, queue *events.Queue) error {
	symbol := streamSymbol(f.Instrument)
	for _, tf := range f.Timeframes {
		stream := fmt.Sprintf("%s@kline_%s", symbol, tf)
		go f.consume(ctx, stream, func(msg []byte) error {
			ev, err := parseKline(f.Instrument, msg)
			if err != nil {
				return err
			}
			return queue.Push(ctx, ev)
		})
	}
	if f.DepthLevels > 0 {
		stream := fmt.Sprintf("%s@depth%d@100ms", symbol, f.DepthLevels)
		go f.consume(ctx, stream, func(msg []byte) error {
			ev, err := parseDepth(f.Instrument, msg)
			if err != nil {
				return err
			}
			return queue.Push(ctx, ev)
		})
	}
	<-ctx.Done()
	return ctx.Err()
}

// consume dials a stream and forwards messages until the context ends,
// reconnecting on failure.
func (f *BinanceFeed) consume(ctx context.Context, stream string, handle func([]byte) error) {
	url := f.URL + "/" + stream
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return
		}
		conn, _, err := f.dialer.DialContext(ctx, url, nil)
		if err != nil {
			f.Log.Warn("stream dial failed", zap.String("stream", stream), zap.Error(err))
			continue
		}
		f.readLoop(ctx, conn, stream, handle)
		if ctx.Err() != nil {
			return
		}
		f.Log.Info("stream disconnected, reconnecting", zap.String("stream", stream))
	}
}

func (f *BinanceFeed) readLoop(ctx context.Context, conn *websocket.Conn, stream string, handle func([]byte) error) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.Log.Warn("stream read failed", zap.String("stream", stream), zap.Error(err))
			}
			return
		}
		if err := handle(msg); err != nil {
			f.Log.Warn("stream message dropped", zap.String("stream", stream), zap.Error(err))
		}
	}
}

// streamSymbol lowercases and strips the pair separator: BTC/USDT -> btcusdt.
func streamSymbol(instrument string) string {
	return strings.ToLower(strings.ReplaceAll(instrument, "/", ""))
}

// parseKline decodes only the fields the core needs from a kline message.
func parseKline(instrument string, msg []byte) (events.BarEvent, error) {
	var raw struct {
		K struct {
			StartTime int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			Final     bool   `json:"x"`
		} `json:"k"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return events.BarEvent{}, fmt.Errorf("decode kline: %w", err)
	}
	tf, err := market.ParseTimeframe(raw.K.Interval)
	if err != nil {
		return events.BarEvent{}, err
	}
	bar := market.Bar{OpenTime: time.UnixMilli(raw.K.StartTime).UTC()}
	for _, field := range []struct {
		src string
		dst *float64
	}{
		{raw.K.Open, &bar.Open},
		{raw.K.High, &bar.High},
		{raw.K.Low, &bar.Low},
		{raw.K.Close, &bar.Close},
		{raw.K.Volume, &bar.Volume},
	} {
		v, err := strconv.ParseFloat(field.src, 64)
		if err != nil {
			return events.BarEvent{}, fmt.Errorf("decode kline field %q: %w", field.src, err)
		}
		*field.dst = v
	}
	return events.BarEvent{
		Instrument: instrument,
		Timeframe:  tf,
		Bar:        bar,
		Final:      raw.K.Final,
	}, nil
}

// parseDepth decodes a partial-book depth snapshot.
func parseDepth(instrument string, msg []byte) (events.DepthEvent, error) {
	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return events.DepthEvent{}, fmt.Errorf("decode depth: %w", err)
	}
	snap := market.DepthSnapshot{}
	var err error
	if snap.Bids, err = parseLevels(raw.Bids); err != nil {
		return events.DepthEvent{}, err
	}
	if snap.Asks, err = parseLevels(raw.Asks); err != nil {
		return events.DepthEvent{}, err
	}
	return events.DepthEvent{Instrument: instrument, Depth: snap}, nil
}

func parseLevels(raw [][]string) ([]market.DepthLevel, error) {
	out := make([]market.DepthLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("depth level has %d fields", len(pair))
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("depth price %q: %w", pair[0], err)
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("depth qty %q: %w", pair[1], err)
		}
		out = append(out, market.DepthLevel{Price: price, Qty: qty})
	}
	return out, nil
}
