package leave

import (
	"errors"
	"strings"

	leaveerrors "leavedesk/internal/leave/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return leaveerrors.ErrLeaveOverlap
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") {
		return leaveerrors.ErrLeaveOverlap
	}

	return err
}
