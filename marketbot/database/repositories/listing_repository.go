package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
}

type listingRepository struct {
	*BaseRepository
}

func NewListingRepository(db *bun.DB) ListingRepository {
	return &listingRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now()
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(listing).Returning("id").Exec(ctx)
	return handleError("create", "listing", listing.SellerID, err)
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("l.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get", "listing", id, err)
	}
	return listing, nil
}
