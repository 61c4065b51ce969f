package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

// SaleRepository stores fixed-price sales and the buyers interested in them.
type SaleRepository interface {
	Create(ctx context.Context, sale *models.Sale) error
	GetByID(ctx context.Context, id int64) (*models.Sale, error)
	GetByListingID(ctx context.Context, listingID int64) (*models.Sale, error)
	// Transition writes sale's status, buyer, announcement and sold time, but
	// only while the stored status is one of from. Otherwise it returns a
	// NotFoundError and changes nothing.
	Transition(ctx context.Context, sale *models.Sale, from ...models.SaleStatus) error
	// AddInterest returns a ConflictError when the buyer already pressed Buy.
	AddInterest(ctx context.Context, interest *models.SaleInterest) error
	CountInterests(ctx context.Context, saleID int64) (int, error)
}

type saleRepository struct {
	*BaseRepository
}

func NewSaleRepository(db *bun.DB) SaleRepository {
	return &saleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *saleRepository) Create(ctx context.Context, sale *models.Sale) error {
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(sale).Returning("id").Exec(ctx)
	return handleError("create", "sale", sale.ListingID, err)
}

func (r *saleRepository) GetByID(ctx context.Context, id int64) (*models.Sale, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	sale := new(models.Sale)
	err := r.db.NewSelect().
		Model(sale).
		Where("s.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get", "sale", id, err)
	}
	return sale, nil
}

func (r *saleRepository) GetByListingID(ctx context.Context, listingID int64) (*models.Sale, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	sale := new(models.Sale)
	err := r.db.NewSelect().
		Model(sale).
		Where("s.listing_id = ?", listingID).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get_by_listing", "sale", listingID, err)
	}
	return sale, nil
}

func (r *saleRepository) Transition(ctx context.Context, sale *models.Sale, from ...models.SaleStatus) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := transitionSaleQuery(r.db, sale, from).Exec(ctx)
	if err != nil {
		return handleError("transition", "sale", sale.ID, err)
	}
	return expectOneRow(res, "sale", sale.ID)
}

func (r *saleRepository) AddInterest(ctx context.Context, interest *models.SaleInterest) error {
	if interest.CreatedAt.IsZero() {
		interest.CreatedAt = time.Now()
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(interest).Returning("id").Exec(ctx)
	return handleError("add_interest", "sale_interest", interest.BuyerID, err)
}

func (r *saleRepository) CountInterests(ctx context.Context, saleID int64) (int, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.SaleInterest)(nil)).
		Where("si.sale_id = ?", saleID).
		Count(ctx)
	if err != nil {
		return 0, handleError("count_interests", "sale_interest", saleID, err)
	}
	return count, nil
}

// transitionSaleQuery is a compare-and-set on status, so two moderators or a
// seller racing a moderator cannot both move the same sale.
func transitionSaleQuery(db bun.IDB, sale *models.Sale, from []models.SaleStatus) *bun.UpdateQuery {
	return db.NewUpdate().
		Model(sale).
		Column("status", "buyer_id", "announcement_id", "sold_at").
		WherePK().
		Where("status IN (?)", bun.In(from))
}
