package sale

import (
	"errors"
	"fmt"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
)

var (
	ErrNotFound     = errors.New("sale not found")
	ErrInvalidState = errors.New("invalid sale state")
	ErrInvalidPrice = errors.New("price must be positive")
	ErrOwnSale      = errors.New("seller cannot buy their own item")
)

func stateError(s *models.Sale, op string) error {
	return fmt.Errorf("cannot %s sale %d in status %s: %w", op, s.ID, s.Status, ErrInvalidState)
}

func translate(saleID int64, err error) error {
	if err == nil {
		return nil
	}
	var nfe *repositories.NotFoundError
	if errors.As(err, &nfe) && nfe.Entity == "sale" {
		return fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
	}
	return err
}
