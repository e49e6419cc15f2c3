package monitor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PositionStatus is the externally visible view of the open position.
type PositionStatus struct {
	ID           string    `json:"id"`
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`
	OriginalQty  float64   `json:"original_qty"`
	RemainingQty float64   `json:"remaining_qty"`
	PnLPct       float64   `json:"pnl_pct"`
}

// SignalRecord is one emitted signal in the recent-signal ring.
type SignalRecord struct {
	Time       time.Time `json:"time"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
}

// Status is a point-in-time snapshot of one strategy instance.
type Status struct {
	Strategy      string          `json:"strategy"`
	Instrument    string          `json:"instrument"`
	LastBarTime   time.Time       `json:"last_bar_time"`
	LastPrice     float64         `json:"last_price"`
	BarsSeen      int64           `json:"bars_seen"`
	Position      *PositionStatus `json:"position,omitempty"`
	RecentSignals []SignalRecord  `json:"recent_signals"`
}

// StatusSource is implemented by the strategy runtime. Snapshots must be safe
// to take from the HTTP goroutine.
type StatusSource interface {
	Status() Status
}

// Server is the read-only monitor API.
type Server struct {
	engine *gin.Engine
	source StatusSource
}

// NewServer wires the routes. No mutation endpoints exist on purpose.
func NewServer(source StatusSource, metrics *Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, source: source}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.source.Status())
	})
	engine.GET("/api/position", func(c *gin.Context) {
		st := s.source.Status()
		if st.Position == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no open position"})
			return
		}
		c.JSON(http.StatusOK, st.Position)
	})
	engine.GET("/api/signals", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.source.Status().RecentSignals)
	})
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
		))
	}
	return s
}

// Handler returns the underlying HTTP handler, for serving and for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }
