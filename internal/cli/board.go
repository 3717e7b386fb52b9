package cli

import (
	"context"

	"planboard/internal/planning"
	"planboard/internal/store"
)

// board is one command's view of the planning store, loaded for a single day.
type board struct {
	backend store.Store
	ps      *planning.Store
}

func newBoard(app *App) *board {
	backend := store.Store{Dir: app.Dir, Log: app.log, Now: timeNow}
	opts := append(app.cfg.StoreOptions(), planning.WithLogger(app.log), planning.WithClock(timeNow))
	return &board{backend: backend, ps: planning.New(backend, opts...)}
}

// openBoard loads date (YYYY-MM-DD, empty for today).
func openBoard(ctx context.Context, app *App, date string) (*board, error) {
	b := newBoard(app)
	if err := b.backend.Ensure(); err != nil {
		return nil, err
	}
	if err := b.ps.LoadToday(ctx, date); err != nil {
		if cerr := b.close(ctx); cerr != nil {
			app.log.Warn("close after failed load", "dir", app.Dir, "error", cerr)
		}
		return nil, err
	}
	return b, nil
}

func (b *board) close(ctx context.Context) error {
	return b.ps.Close(ctx)
}
