package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"gorm.io/gorm"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("aggregate validation")
	// ErrConflict indicates a lost compare-and-set or unique collision.
	ErrConflict = errors.New("aggregate conflict")
)

// ValidationError tags an error as validation failure.
func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// ConflictError tags an error as conflict failure.
func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

// MapError maps gorm, pgconn and sqlite failures into transfer error codes.
// Errors that already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *transfer.Error
	if errors.As(err, &te) {
		return err
	}
	switch {
	case errors.Is(err, ErrValidation):
		return transfer.Wrap(transfer.CodeBadRequest, op, err)
	case errors.Is(err, ErrConflict):
		return transfer.Wrap(transfer.CodeConflict, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return transfer.Wrap(transfer.CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return transfer.Wrap(transfer.CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return transfer.Wrap(transfer.CodePersistence, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return transfer.Wrap(transfer.CodeConflict, op, err) // unique_violation
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "unique constraint failed"),
		strings.Contains(msg, "already exists"):
		return transfer.Wrap(transfer.CodeConflict, op, err)
	default:
		return transfer.Wrap(transfer.CodePersistence, op, err)
	}
}
