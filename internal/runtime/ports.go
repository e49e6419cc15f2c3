package runtime

import (
	"context"
	"time"

	"github.com/maxrule98/simple-bot/internal/signal"
)

// TradeSide is the direction the order trades on the venue. Exits carry the
// side that flattens the position, so a short close is a buy.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// Order is a decision forwarded to the execution collaborator.
type Order struct {
	Instrument string
	Signal     signal.Signal
	Side       TradeSide
	Quantity   float64
	// Price is the reference price at decision time; market-order
	// implementations may fill at a different price.
	Price float64
}

// Fill is an execution confirmation. Position state changes only on fills.
type Fill struct {
	Quantity float64
	AvgPrice float64
	Fee      float64
	Time     time.Time
}

// ExecutionPort places orders. Implementations own retries and timeouts; the
// runtime calls Execute at most once per decision per tick and assumes
// nothing happened when an error comes back.
type ExecutionPort interface {
	Execute(ctx context.Context, order Order) (Fill, error)
}

// TransitionKind classifies a position state change.
type TransitionKind string

const (
	TransitionOpen   TransitionKind = "OPEN"
	TransitionReduce TransitionKind = "REDUCE"
	TransitionClose  TransitionKind = "CLOSE"
)

// Transition is one position state change, recorded for audit and replay
// comparison.
type Transition struct {
	PositionID string
	Kind       TransitionKind
	Quantity   float64
	Price      float64
	Time       time.Time
}

// AuditSink receives the decision trail. Implementations must not block the
// decision path for long; errors are logged, never fatal.
type AuditSink interface {
	RecordSignal(instrument string, s signal.Signal) error
	RecordTransition(instrument string, tr Transition) error
}
