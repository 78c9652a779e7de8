package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"webshop/internal/db"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepository(db.Wrap(mock)), mock
}

func TestGetProductNotFound(t *testing.T) {
	ctx := context.Background()

	t.Run("no row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM products").
			WithArgs("559f8f5e-0000-0000-0000-000000000000").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetProduct(ctx, "559f8f5e-0000-0000-0000-000000000000")
		if !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	// Postgres rejects a malformed uuid with 22P02 instead of returning
	// zero rows; the caller still sees a plain not-found.
	t.Run("malformed id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT (.+) FROM products").
			WithArgs("abc").
			WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

		_, err := repo.GetProduct(ctx, "abc")
		if !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	})
}

func TestGetCategoryMalformedID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM categories").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.GetCategory(context.Background(), "abc")
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestDeleteProductMalformedID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM products").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	if err := repo.DeleteProduct(context.Background(), "abc"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
