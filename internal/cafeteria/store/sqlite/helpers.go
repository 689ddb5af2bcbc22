package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// money parses a canonical decimal TEXT column.
func money(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad money column %q: %w", s, err)
	}
	return d, nil
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := msToTime(v.Int64)
	return &t
}
