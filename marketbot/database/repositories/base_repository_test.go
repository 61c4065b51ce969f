package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestHandleError(t *testing.T) {
	check.Nil(t, handleError("get", "auction", 1, nil))

	err := handleError("get", "auction", 7, fmt.Errorf("scan: %w", sql.ErrNoRows))
	var nfe *NotFoundError
	check.True(t, errors.As(err, &nfe))
	check.Equal(t, "auction with ID 7 not found", err.Error())

	err = handleError("lock", "auction", 7, &NotFoundError{Entity: "auction", ID: 7})
	check.True(t, IsNotFound(err))

	boom := errors.New("connection refused")
	err = handleError("save", "auction", 7, boom)
	var re *RepositoryError
	check.True(t, errors.As(err, &re))
	check.Equal(t, "save", re.Operation)
	check.True(t, errors.Is(err, boom))
	check.False(t, IsNotFound(err))
	check.False(t, IsConflict(err))
}
