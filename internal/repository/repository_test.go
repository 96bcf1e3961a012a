package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
)

func newMock(t *testing.T) (*Facade, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, 10*time.Second), mock
}

func TestInTxSetsLockTimeoutAndCommits(t *testing.T) {
	f, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = 10000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := f.InTx(context.Background(), func(service.Store) error { return nil })
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	f, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = 10000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	err := f.InTx(context.Background(), func(service.Store) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindActivationForUpdateLocksRow(t *testing.T) {
	f, mock := newMock(t)
	now := time.Now().UTC()

	columns := []string{
		"activation_id", "activation_code", "user_id", "application_id", "master_keypair_id",
		"server_public_key_base64", "server_private_key_base64", "server_private_key_encryption",
		"device_public_key_base64", "counter", "failed_attempts", "max_failed_attempts", "activation_status",
		"blocked_reason", "activation_name", "extras", "activation_version", "timestamp_created",
		"timestamp_last_used", "timestamp_activation_expire",
	}

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = 10000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT .+ FROM pa_activation WHERE activation_id = \$1 FOR UPDATE`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"a-1", "CODE", "alice", int64(1), int64(1),
			"pub", "priv", int64(0),
			nil, int64(0), int64(0), int64(5), int64(3),
			nil, nil, nil, nil, now,
			now, now.Add(time.Minute),
		))
	mock.ExpectCommit()

	err := f.InTx(context.Background(), func(tx service.Store) error {
		a, err := tx.FindActivationForUpdate(context.Background(), "a-1")
		if err != nil {
			return err
		}
		if a.Status != model.StatusActive {
			t.Fatalf("status = %v, want ACTIVE", a.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, service.ErrNotFound},
		{"lock timeout", &pq.Error{Code: "55P03"}, service.ErrConcurrency},
		{"unique violation", &pq.Error{Code: "23505"}, service.ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("mapError(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	other := errors.New("unrelated")
	if got := mapError(other); got != other {
		t.Fatalf("unrelated errors must pass through, got %v", got)
	}
}
