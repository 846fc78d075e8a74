package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/events"
	"github.com/koshedutech/binance-futures-bot/internal/execution"
	"github.com/koshedutech/binance-futures-bot/internal/strategy"
)

// Journal subscribes to the event bus and persists signals and order
// outcomes as they happen. Persistence failures are logged and dropped;
// the trading pipeline never waits on the journal.
type Journal struct {
	db  *DB
	log zerolog.Logger
}

// NewJournal attaches the journal to the bus. A nil db yields a nil
// journal, which is safe to ignore.
func NewJournal(db *DB, bus *events.Bus, log zerolog.Logger) *Journal {
	if db == nil {
		return nil
	}

	j := &Journal{db: db, log: log}
	bus.Subscribe(events.TypeSignal, j.onSignal)
	bus.Subscribe(events.TypeOrder, j.onOrder)
	return j
}

func (j *Journal) onSignal(event events.Event) {
	sig, ok := event.Data.(*strategy.Signal)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.db.SaveSignal(ctx, sig); err != nil {
		j.log.Warn().Err(err).Msg("journal signal write failed")
	}
}

func (j *Journal) onOrder(event events.Event) {
	result, ok := event.Data.(execution.OrderResult)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.db.SaveOrder(ctx, result); err != nil {
		j.log.Warn().Err(err).Msg("journal order write failed")
	}
}
