package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

// timeLayout keeps every nanosecond digit so the stored strings sort
// chronologically; time.RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}

	return encodeTime(*t)
}

func decodeTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", raw, err)
	}

	return t.UTC(), nil
}

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}

	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func statusParam(s *models.Status) any {
	if s == nil {
		return nil
	}

	return string(*s)
}

func statusValue(ns sql.NullString) *models.Status {
	if !ns.Valid {
		return nil
	}

	status := models.Status(ns.String)

	return &status
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}
