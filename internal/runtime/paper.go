package runtime

import (
	"context"
)

// PaperExecutor fills every order immediately at the reference price adjusted
// by configured slippage, charging a proportional fee. Fully deterministic,
// so it serves both paper trading and historical replay.
type PaperExecutor struct {
	FeeRate     float64 // decimal, e.g. 0.0004
	SlippageBps float64
}

// Execute implements ExecutionPort. Slippage is always adverse: buys pay up,
// sells receive less. The order side already encodes the flattening
// direction, so a short close slips upward like any other buy.
func (p *PaperExecutor) Execute(_ context.Context, order Order) (Fill, error) {
	slip := order.Price * p.SlippageBps / 10000
	price := order.Price
	if order.Side == TradeBuy {
		price += slip
	} else {
		price -= slip
	}
	return Fill{
		Quantity: order.Quantity,
		AvgPrice: price,
		Fee:      price * order.Quantity * p.FeeRate,
		Time:     order.Signal.Time,
	}, nil
}
