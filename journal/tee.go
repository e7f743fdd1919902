package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Tee writes to a primary journal and copies every appended entry to mirrors.
// Reads come from the primary only. A failing mirror is logged and never
// fails the append once the primary holds the row.
type Tee struct {
	Primary Journal
	Mirrors []Journal
	Log     zerolog.Logger
}

func (t *Tee) Append(ctx context.Context, e Entry) error {
	if err := t.Primary.Append(ctx, e); err != nil {
		return err
	}
	for _, m := range t.Mirrors {
		if err := m.Append(ctx, e); err != nil {
			t.Log.Warn().Err(err).Str("account", e.Account).Msg("journal mirror append failed")
		}
	}
	return nil
}

func (t *Tee) Entries(ctx context.Context, account string) ([]Entry, error) {
	return t.Primary.Entries(ctx, account)
}

// EntriesBetween delegates to the primary.
func (t *Tee) EntriesBetween(ctx context.Context, account string, start, end time.Time) ([]Entry, error) {
	return Between(ctx, t.Primary, account, start, end)
}

// Close closes the mirrors. The primary belongs to the caller.
func (t *Tee) Close() error {
	var errs []error
	for _, m := range t.Mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
