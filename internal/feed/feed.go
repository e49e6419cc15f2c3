// Package feed contains the market-data producers: a live websocket adapter,
// a deterministic mock, and a historical replay source. Every feed pushes
// ordered events onto a strategy instance's queue and never touches decision
// state directly.
package feed

import (
	"context"

	"github.com/maxrule98/simple-bot/internal/events"
)

// Feed produces market-data events. Finite feeds (replay, bounded mock)
// close the queue when their input is exhausted; live feeds run until the
// context is cancelled.
type Feed interface {
	Run(ctx context.Context, queue *events.Queue) error
}
