package monitor

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/source"
)

// FilterSymbols normalizes configured symbols (trimmed, uppercased,
// deduplicated in first-seen order) and drops those the validator rejects.
// A validator error keeps the symbol. Returns an error when nothing is
// left to monitor.
func FilterSymbols(ctx context.Context, symbols []string, validator source.Validator, logger *log.Entry) ([]string, error) {
	seen := make(map[string]struct{}, len(symbols))
	valid := make([]string, 0, len(symbols))

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		if validator != nil {
			ok, err := validator.IsValid(ctx, symbol)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.WithField("symbol", symbol).WithError(err).Warn("Could not validate symbol, keeping it")
			case !ok:
				logger.WithField("symbol", symbol).Warn("Dropping invalid symbol")
				continue
			}
		}
		valid = append(valid, symbol)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid symbols to monitor")
	}
	return valid, nil
}
