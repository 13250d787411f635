package pgparcel

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "parcelbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/parcelbox_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGParcel_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	// Пользователи: повторное создание — no-op.
	inserted, err := st.CreateUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = st.CreateUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.False(t, inserted)

	// Посылки: создание, выборка, сортировка и фильтр по created_by.
	p1, err := st.CreateParcel(ctx, models.ParcelCreateInput{
		CreatedBy: "a@x.com",
		Data:      map[string]any{"weight": 2.5, "destination": "Hub1"},
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusUnpaid, p1.PaymentStatus)

	p2, err := st.CreateParcel(ctx, models.ParcelCreateInput{CreatedBy: "b@x.com"})
	require.NoError(t, err)

	got, err := st.GetParcel(ctx, p1.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got.CreatedBy)
	require.Equal(t, 2.5, got.Data["weight"])
	require.Nil(t, got.TransactionID)

	_, err = st.GetParcel(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)

	all, err := st.ListParcels(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.False(t, all[0].CreatedAt.Before(all[1].CreatedAt))

	mine, err := st.ListParcels(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, p1.ID, mine[0].ID)

	// Оплата: платёж + markPaid, затем скан сверки пустеет.
	pay, err := st.CreatePayment(ctx, models.PaymentCreateInput{
		ParcelID:      p1.ID,
		PayerEmail:    "a@x.com",
		Amount:        100,
		TransactionID: "tx1",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, pay.ID)

	orphans, err := st.ListUnreconciledPayments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, pay.ID, orphans[0].ID)

	n, err := st.MarkPaid(ctx, p1.ID, "tx1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err = st.GetParcel(ctx, p1.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.TransactionID)
	require.Equal(t, "tx1", *got.TransactionID)

	orphans, err = st.ListUnreconciledPayments(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, orphans)

	payments, err := st.ListPaymentsByPayer(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, "tx1", payments[0].TransactionID)

	// markPaid по несуществующему id — ноль строк, не ошибка.
	n, err = st.MarkPaid(ctx, uuid.New(), "tx2")
	require.NoError(t, err)
	require.Zero(t, n)

	// Трекинг: N апдейтов — одна запись, порядок вставки сохраняется.
	now := time.Now().UTC()
	for i, status := range []string{"created", "in_transit", "delivered"} {
		_, err := st.AppendTrackingUpdate(ctx, &models.TrackingUpdate{
			ParcelID:  p1.ID,
			Status:    status,
			Location:  "Hub",
			EventTime: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	rec, err := st.GetTracking(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, rec.Updates, 3)
	require.Equal(t, "created", rec.Updates[0].Status)
	require.Equal(t, "delivered", rec.Updates[2].Status)

	_, err = st.GetTracking(ctx, p2.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	// Удаление идемпотентно.
	n, err = st.DeleteParcel(ctx, p2.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = st.DeleteParcel(ctx, p2.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}
