// Package runtime drives one strategy instance: it is the single consumer of
// the instance's event queue and the only writer of its candle buffers,
// feature history, and position state. Decisions depend only on the event
// sequence, never on wall clock or randomness, so live, paper, and replay
// runs produce identical output for identical input.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxrule98/simple-bot/internal/aggregate"
	"github.com/maxrule98/simple-bot/internal/config"
	"github.com/maxrule98/simple-bot/internal/events"
	"github.com/maxrule98/simple-bot/internal/exits"
	"github.com/maxrule98/simple-bot/internal/features"
	"github.com/maxrule98/simple-bot/internal/generator"
	"github.com/maxrule98/simple-bot/internal/market"
	"github.com/maxrule98/simple-bot/internal/monitor"
	"github.com/maxrule98/simple-bot/internal/position"
	"github.com/maxrule98/simple-bot/internal/rules"
	"github.com/maxrule98/simple-bot/internal/signal"
)

const (
	defaultRetention  = 500
	featureHistoryCap = 512
	signalRingCap     = 50
)

// Runtime orchestrates the decision pipeline for one strategy instance.
type Runtime struct {
	log *zap.Logger
	cfg *config.StrategyConfig

	primary    market.Timeframe
	buffers    map[market.Timeframe]*market.Buffer
	engine     *features.Engine
	generators []generator.Generator
	agg        *aggregate.Aggregator
	exitMgr    *exits.Manager
	exec       ExecutionPort

	audit   AuditSink
	metrics *monitor.Metrics

	// Owned by the consumer goroutine.
	history []features.FeatureSet
	depth   *market.DepthSnapshot
	pos     *position.Position

	// Snapshot state, also read by Status from other goroutines.
	mu          sync.Mutex
	lastBar     market.Bar
	barsSeen    int64
	posSnap     *monitor.PositionStatus
	signalLog   []signal.Signal
	transitions []Transition
}

// Option configures optional collaborators.
type Option func(*Runtime)

// WithAudit records signals and position transitions to a sink.
func WithAudit(sink AuditSink) Option { return func(r *Runtime) { r.audit = sink } }

// WithMetrics publishes counters for the monitor endpoint.
func WithMetrics(m *monitor.Metrics) Option { return func(r *Runtime) { r.metrics = m } }

// New builds a runtime from a validated strategy config. Construction fails
// on any configuration defect so a broken strategy never starts.
func New(cfg *config.StrategyConfig, exec ExecutionPort, log *zap.Logger, opts ...Option) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if exec == nil {
		return nil, fmt.Errorf("runtime: execution port is required")
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	buffers := make(map[market.Timeframe]*market.Buffer)
	for _, tf := range cfg.Timeframes() {
		buffers[tf] = market.NewBuffer(cfg.Instrument, tf, retention)
	}

	specs, err := cfg.FeatureSpecs()
	if err != nil {
		return nil, err
	}
	engine, err := features.NewEngine(specs)
	if err != nil {
		return nil, err
	}

	var gens []generator.Generator
	for _, gc := range cfg.Generators {
		g, err := generator.New(gc.Kind, gc.Params(), log)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}

	agg, err := cfg.Aggregator()
	if err != nil {
		return nil, err
	}
	exitMgr, err := exits.New(cfg.Exits, log)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		log:        log.With(zap.String("strategy", cfg.Name), zap.String("instrument", cfg.Instrument)),
		cfg:        cfg,
		primary:    market.Timeframe(cfg.PrimaryTimeframe),
		buffers:    buffers,
		engine:     engine,
		generators: gens,
		agg:        agg,
		exitMgr:    exitMgr,
		exec:       exec,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Preload seeds a timeframe buffer with historical bars before Run, so
// indicators have warm history from the first live tick.
func (r *Runtime) Preload(tf market.Timeframe, bars []market.Bar) error {
	buf, ok := r.buffers[tf]
	if !ok {
		return fmt.Errorf("runtime: no buffer for timeframe %s", tf)
	}
	for _, bar := range bars {
		if _, err := buf.AppendOrUpdate(bar); err != nil {
			return err
		}
	}
	return nil
}

// Run consumes the queue until it closes or the context is cancelled. It is
// the only goroutine that mutates instance state.
func (r *Runtime) Run(ctx context.Context, queue *events.Queue) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, open := <-queue.Events():
			if !open {
				return nil
			}
			r.handle(ctx, e)
		}
	}
}

func (r *Runtime) handle(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.BarEvent:
		r.handleBar(ctx, ev)
	case events.DepthEvent:
		r.handleDepth(ev)
	default:
		r.log.Warn("unknown event type discarded", zap.Any("event", e))
	}
}

func (r *Runtime) handleDepth(ev events.DepthEvent) {
	if err := ev.Depth.Validate(); err != nil {
		r.log.Warn("malformed depth snapshot discarded", zap.Error(err))
		return
	}
	r.depth = &ev.Depth
}

func (r *Runtime) handleBar(ctx context.Context, ev events.BarEvent) {
	buf, ok := r.buffers[ev.Timeframe]
	if !ok {
		r.log.Warn("bar for unconfigured timeframe discarded",
			zap.String("timeframe", string(ev.Timeframe)))
		return
	}
	if _, err := buf.AppendOrUpdate(ev.Bar); err != nil {
		r.log.Warn("bar rejected", zap.Error(err),
			zap.String("timeframe", string(ev.Timeframe)),
			zap.Time("open_time", ev.Bar.OpenTime))
		if r.metrics != nil {
			r.metrics.BarsRejected.WithLabelValues(string(ev.Timeframe)).Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.BarsTotal.WithLabelValues(string(ev.Timeframe)).Inc()
	}

	if ev.Timeframe != r.primary {
		return
	}

	if ev.Final {
		r.decisionPass(ctx, ev.Bar)
	} else if r.pos != nil {
		// Forming-candle update: only protective exits react intra-bar.
		if s := r.exitMgr.Evaluate(r.pos, ev.Bar.Close, ev.Bar.OpenTime); s != nil {
			r.executeExit(ctx, s, ev.Bar.Close)
		}
	}
	r.snapshot(ev.Bar)
}

// snapshot refreshes the state visible to the monitor.
func (r *Runtime) snapshot(bar market.Bar) {
	var ps *monitor.PositionStatus
	if r.pos != nil {
		ps = &monitor.PositionStatus{
			ID:           r.pos.ID,
			Side:         string(r.pos.Side),
			EntryPrice:   r.pos.EntryPrice,
			EntryTime:    r.pos.EntryTime,
			OriginalQty:  r.pos.OriginalQty,
			RemainingQty: r.pos.RemainingQty,
			PnLPct:       r.pos.PnLPct(bar.Close),
		}
	}
	r.mu.Lock()
	r.lastBar = bar
	r.barsSeen++
	r.posSnap = ps
	r.mu.Unlock()
}

// decisionPass runs the full pipeline on a closed primary-timeframe bar:
// feature recompute, then exits before entries, at most one order forwarded.
func (r *Runtime) decisionPass(ctx context.Context, bar market.Bar) {
	started := time.Now()

	fs := r.engine.Compute(r.buffers)
	r.history = append(r.history, fs)
	if len(r.history) > featureHistoryCap {
		r.history = r.history[1:]
	}

	genCtx := generator.Context{
		Instrument: r.cfg.Instrument,
		Time:       bar.OpenTime,
		Price:      bar.Close,
		Features:   fs,
		Lookup:     r.featureLookup(),
		Window:     r.buffers[r.primary].Window(50),
		Depth:      r.depth,
		Position:   r.pos,
	}

	if r.pos != nil {
		if s := r.exitMgr.Evaluate(r.pos, bar.Close, bar.OpenTime); s != nil {
			r.executeExit(ctx, s, bar.Close)
			r.observeLatency(started)
			return
		}
		// Rule-based exits proposed by generators.
		if decision := r.aggregateSignals(genCtx); decision != nil && decision.IsExit() {
			r.executeExit(ctx, decision, bar.Close)
		}
		r.observeLatency(started)
		return
	}

	decision := r.aggregateSignals(genCtx)
	if decision != nil && (decision.Type == signal.Buy || decision.Type == signal.Sell) {
		r.executeEntry(ctx, decision, bar.Close)
	}
	r.observeLatency(started)
}

func (r *Runtime) aggregateSignals(genCtx generator.Context) *signal.Signal {
	var sigs []signal.Signal
	for _, g := range r.generators {
		for _, s := range g.Generate(genCtx) {
			if err := s.Validate(); err != nil {
				r.log.Warn("generator emitted invalid signal",
					zap.String("kind", g.Kind()), zap.Error(err))
				continue
			}
			if r.metrics != nil {
				r.metrics.SignalsTotal.WithLabelValues(string(s.Type), string(s.Source)).Inc()
			}
			sigs = append(sigs, s)
		}
	}
	return r.agg.Aggregate(sigs)
}

func (r *Runtime) executeEntry(ctx context.Context, s *signal.Signal, price float64) {
	tradeSide := TradeBuy
	if s.Type == signal.Sell {
		tradeSide = TradeSell
	}
	order := Order{
		Instrument: r.cfg.Instrument,
		Signal:     *s,
		Side:       tradeSide,
		Quantity:   r.cfg.Order.Quantity,
		Price:      price,
	}
	fill, err := r.exec.Execute(ctx, order)
	if err != nil {
		r.execFailed(s, err)
		return
	}
	if fill.Quantity <= 0 {
		r.log.Warn("entry reported zero fill", zap.String("type", string(s.Type)))
		return
	}

	side := position.Long
	if s.Type == signal.Sell {
		side = position.Short
	}
	id := fmt.Sprintf("%s-%d", r.cfg.Instrument, s.Time.UnixMilli())
	pos, err := position.New(id, r.cfg.Instrument, side, fill.AvgPrice, fill.Quantity, s.Time)
	if err != nil {
		r.log.Error("fill produced invalid position", zap.Error(err))
		return
	}
	r.pos = pos
	r.record(s, Transition{
		PositionID: id,
		Kind:       TransitionOpen,
		Quantity:   fill.Quantity,
		Price:      fill.AvgPrice,
		Time:       s.Time,
	})
	r.log.Info("position opened",
		zap.String("side", string(side)),
		zap.Float64("price", fill.AvgPrice),
		zap.Float64("qty", fill.Quantity),
		zap.String("reason", s.Reason))
}

func (r *Runtime) executeExit(ctx context.Context, s *signal.Signal, price float64) {
	qty := r.pos.RemainingQty
	if s.Type == signal.PartialClose {
		qty = s.CloseFraction * r.pos.OriginalQty
		if qty > r.pos.RemainingQty {
			qty = r.pos.RemainingQty
		}
	}
	if qty <= 0 {
		return
	}

	// Closing a long sells; closing a short buys back.
	tradeSide := TradeSell
	if r.pos.Side == position.Short {
		tradeSide = TradeBuy
	}
	order := Order{Instrument: r.cfg.Instrument, Signal: *s, Side: tradeSide, Quantity: qty, Price: price}
	fill, err := r.exec.Execute(ctx, order)
	if err != nil {
		r.execFailed(s, err)
		return
	}
	if fill.Quantity <= 0 {
		r.log.Warn("exit reported zero fill", zap.String("type", string(s.Type)))
		return
	}

	// The ladder level is banked only now that the order filled; a rejected
	// order leaves it armed for the next tick.
	if lvl := s.Metadata[exits.MetaLevel]; lvl != "" {
		r.pos.MarkLevel(lvl)
	}
	closed := r.pos.ApplyFill(fill.Quantity)
	kind := TransitionReduce
	if closed {
		kind = TransitionClose
	}
	r.record(s, Transition{
		PositionID: r.pos.ID,
		Kind:       kind,
		Quantity:   fill.Quantity,
		Price:      fill.AvgPrice,
		Time:       s.Time,
	})
	r.log.Info("position reduced",
		zap.String("kind", string(kind)),
		zap.Float64("qty", fill.Quantity),
		zap.Float64("price", fill.AvgPrice),
		zap.String("reason", s.Reason))
	if closed {
		r.pos = nil
	}
}

func (r *Runtime) execFailed(s *signal.Signal, err error) {
	if r.metrics != nil {
		r.metrics.ExecFailures.Inc()
	}
	// No fill is assumed: position state stays as it was before the order.
	r.log.Error("execution port failed",
		zap.String("type", string(s.Type)), zap.Error(err))
}

func (r *Runtime) record(s *signal.Signal, tr Transition) {
	if r.metrics != nil {
		r.metrics.DecisionsTotal.WithLabelValues(string(s.Type)).Inc()
	}
	r.mu.Lock()
	r.signalLog = append(r.signalLog, *s)
	if len(r.signalLog) > signalRingCap {
		r.signalLog = r.signalLog[1:]
	}
	r.transitions = append(r.transitions, tr)
	r.mu.Unlock()

	if r.audit != nil {
		if err := r.audit.RecordSignal(r.cfg.Instrument, *s); err != nil {
			r.log.Warn("audit signal write failed", zap.Error(err))
		}
		if err := r.audit.RecordTransition(r.cfg.Instrument, tr); err != nil {
			r.log.Warn("audit transition write failed", zap.Error(err))
		}
	}
}

// featureLookup resolves identifiers against recorded feature history so rule
// expressions can reference values N bars ago.
func (r *Runtime) featureLookup() rules.Lookup {
	history := r.history
	return func(name string, offset int) (float64, bool) {
		i := len(history) - 1 - offset
		if i < 0 {
			return 0, false
		}
		return history[i].Lookup(name)
	}
}

func (r *Runtime) observeLatency(started time.Time) {
	if r.metrics != nil {
		r.metrics.DecisionSeconds.Observe(time.Since(started).Seconds())
	}
}

// Transitions returns the recorded position transitions.
func (r *Runtime) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

// Signals returns the recent decision signals.
func (r *Runtime) Signals() []signal.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]signal.Signal, len(r.signalLog))
	copy(out, r.signalLog)
	return out
}

// Status implements monitor.StatusSource.
func (r *Runtime) Status() monitor.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := monitor.Status{
		Strategy:    r.cfg.Name,
		Instrument:  r.cfg.Instrument,
		LastBarTime: r.lastBar.OpenTime,
		LastPrice:   r.lastBar.Close,
		BarsSeen:    r.barsSeen,
		Position:    r.posSnap,
	}
	for _, s := range r.signalLog {
		st.RecentSignals = append(st.RecentSignals, monitor.SignalRecord{
			Time:       s.Time,
			Type:       string(s.Type),
			Source:     string(s.Source),
			Confidence: s.Confidence,
			Reason:     s.Reason,
		})
	}
	return st
}
