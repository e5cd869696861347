package chat

import (
	"context"
	"strings"
	"time"
)

// Replay reveals a fully-received reply word by word on a fixed interval,
// calling emit with the cumulative text after each step. It is purely a
// presentation affordance: the reply has already arrived in full and is
// never re-requested.
//
// An interval <= 0 reveals everything in a single emit. Cancelling the
// context abandons the remaining reveal; the underlying server call is
// unaffected (it already completed).
func Replay(ctx context.Context, reply string, interval time.Duration, emit func(partial string)) error {
	words := strings.Fields(reply)
	if len(words) == 0 {
		return nil
	}

	if interval <= 0 {
		emit(reply)
		return nil
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		emit(b.String())

		if i == len(words)-1 {
			break
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
