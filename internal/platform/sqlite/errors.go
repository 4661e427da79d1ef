package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/asrq/internal/store"
	"github.com/sethvargo/go-retry"
)

// SQLite primary and extended result codes.
const (
	sqliteBusyCode             = 5
	sqliteLockedCode           = 6
	sqliteConstraintCode       = 19
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Parse(time.RFC3339Nano, value)
	}
	return t.UTC(), nil
}

func errorCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := errorCode(err); ok {
		primary := code & 0xff
		if primary == sqliteBusyCode || primary == sqliteLockedCode {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if code, ok := errorCode(err); ok {
		if code == sqliteConstraintPrimaryKey || code == sqliteConstraintUnique {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConstraintViolation(err error) bool {
	if code, ok := errorCode(err); ok && code&0xff == sqliteConstraintCode {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// mapError converts driver errors into store errors. Lock contention and
// anything unrecognised is treated as transient; context errors pass through.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
	case isConstraintViolation(err):
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	default:
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}
}

// retryOnBusy runs op, retrying with exponential backoff while SQLite reports
// the database as busy or locked. Other errors are returned at once.
func retryOnBusy(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(busyRetryAttempts-1,
		retry.WithCappedDuration(busyRetryMaxBackoff, retry.NewExponential(busyRetryInitialBackoff)))

	return retry.Do(ctx, backoff, func(context.Context) error {
		err := op()
		if isSQLiteBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
