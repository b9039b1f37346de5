package order

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRepositoryCreateWithTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	o := &Order{
		ID:        "order-123",
		UserID:    "user-1",
		Total:     200,
		CreatedAt: now,
		Items: []Item{
			{ProductID: "p1", Name: "Milk", Quantity: 2, Price: 100},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders (id, user_id, total, status, version, dropoff_lat, dropoff_lng, dropoff_address, contact_phone, payment_ref, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)).
		WithArgs(o.ID, o.UserID, o.Total, StatusPending, int64(1), nil, nil, "", "", "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items (id, order_id, product_id, name, quantity, price)
             VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs(sqlmock.AnyArg(), o.ID, "p1", "Milk", 2, 100.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// the history row is stamped by the database, not the Go clock
	dbNow := now.Add(250 * time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO order_status_history (order_id, status) VALUES ($1, $2) RETURNING changed_at`)).
		WithArgs(o.ID, StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"changed_at"}).AddRow(dbNow))

	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.CreateWithTx(ctx, tx, o))
	require.NoError(t, tx.Commit())

	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, int64(1), o.Version)
	require.Len(t, o.History, 1)
	require.Equal(t, dbNow, o.History[0].ChangedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, total, status, version, agent_id, dropoff_lat, dropoff_lng, dropoff_address, contact_phone, payment_ref, created_at
         FROM orders WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	o, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, o)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAdvanceWithTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := &Order{ID: "order-1", Status: StatusPending, Version: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders
         SET status = $1, version = version + 1, agent_id = COALESCE(agent_id, $2)
         WHERE id = $3 AND status = $4 AND version = $5`)).
		WithArgs(StatusPickedUp, "agent-1", o.ID, StatusPending, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_status_history (order_id, status) VALUES ($1, $2)`)).
		WithArgs(o.ID, StatusPickedUp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.AdvanceWithTx(context.Background(), tx, o, StatusPickedUp, "agent-1"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAdvanceWithTx_StaleVersionConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := &Order{ID: "order-1", Status: StatusPending, Version: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders
         SET status = $1, version = version + 1, agent_id = COALESCE(agent_id, $2)
         WHERE id = $3 AND status = $4 AND version = $5`)).
		WithArgs(StatusPickedUp, "agent-1", o.ID, StatusPending, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.AdvanceWithTx(context.Background(), tx, o, StatusPickedUp, "agent-1")
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRate_SecondWriteRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	insert := regexp.QuoteMeta(`INSERT INTO order_ratings (order_id, stars, feedback)
         VALUES ($1, $2, $3) ON CONFLICT (order_id) DO NOTHING`)

	mock.ExpectExec(insert).
		WithArgs("order-1", 5, "great").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).
		WithArgs("order-1", 4, "changed my mind").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Rate(ctx, "order-1", 5, "great"))
	require.ErrorIs(t, repo.Rate(ctx, "order-1", 4, "changed my mind"), ErrAlreadyRated)
	require.NoError(t, mock.ExpectationsWereMet())
}
