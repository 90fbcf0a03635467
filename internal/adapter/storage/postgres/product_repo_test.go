package postgres

import (
	"context"
	"testing"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productCols() []string {
	return []string{"id", "name", "description", "price", "stock", "status", "seller_wallet_id",
		"created_by", "created_at", "updated_at"}
}

func newTestProduct() *domain.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Product{
		ID:          uuid.New(),
		Name:        "Campus Hoodie",
		Description: "Navy, size M",
		Price:       120,
		Stock:       3,
		Status:      domain.ProductStatusActive,
		CreatedBy:   uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func productRow(p *domain.Product) *pgxmock.Rows {
	return pgxmock.NewRows(productCols()).AddRow(
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Status, p.SellerWalletID,
		p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
}

func TestProductRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	p := newTestProduct()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.Name, p.Description, p.Price, p.Stock, p.Status, p.SellerWalletID,
			p.CreatedBy, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	p := newTestProduct()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM products WHERE id .+ FOR UPDATE").
		WithArgs(p.ID).
		WillReturnRows(productRow(p))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(3), result.Stock)
	assert.True(t, result.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(productCols()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestProductRepo_UpdateAndDelete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	p := newTestProduct()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET name").
		WithArgs(p.ID, p.Name, p.Description, p.Price, p.Stock, p.Status, p.SellerWalletID, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM products").
		WithArgs(p.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Update(context.Background(), tx, p), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), tx, p.ID), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecrementStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE products SET stock").
		WithArgs(id, int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(2)))
	mock.ExpectQuery("UPDATE products SET stock").
		WithArgs(id, int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"stock"}))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	remaining, err := repo.DecrementStock(context.Background(), tx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)

	_, err = repo.DecrementStock(context.Background(), tx, id, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_List_ByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	p := newTestProduct()
	status := domain.ProductStatusActive

	mock.ExpectQuery("SELECT COUNT.+ FROM products WHERE status").
		WithArgs(status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM products WHERE status .+ ORDER BY created_at DESC").
		WithArgs(status, 20, 0).
		WillReturnRows(productRow(p))

	products, total, err := repo.List(context.Background(), ports.ProductListParams{Status: &status, Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, products, 1)
	assert.Equal(t, p.Name, products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
