package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/domain"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

const pgUniqueViolation = "23505"

// storeFailure logs err and hides it behind a generic internal error.
// Domain errors pass through untouched.
func storeFailure(logger *zap.Logger, op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	logger.Error("store operation failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return apperrors.NewInternalError(err)
}

// notFoundOr maps a missing row to NotFound for resource and anything else to
// a store failure.
func notFoundOr(logger *zap.Logger, op, resource string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return storeFailure(logger, op, err, zap.Int64(resource+"_id", id))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func requireIdentity(actor domain.Identity) error {
	if actor.ID <= 0 {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}
