package db

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"github.com/fleetguard/fleetguard/pkg/store"
)

func TestConnectRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Connect(Config{})
	assert.ErrorIs(t, err, ErrNoDatabaseURL)
}

func TestURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fleet@localhost/fleet")
	assert.Equal(t, "postgres://fleet@localhost/fleet", URL())
}

func TestOpenInstallsAuditImmutability(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	database, err := Open(postgres.New(postgres.Config{Conn: mockDB, PreferSimpleProtocol: true}))
	require.NoError(t, err)

	err = database.Exec(`DELETE FROM audit_log_entries WHERE actor_id = ?`, "alice").Error
	assert.ErrorIs(t, err, store.ErrImmutableRecord)

	err = database.Exec(`UPDATE "audit_log_entries" SET outcome = 'success'`).Error
	assert.ErrorIs(t, err, store.ErrImmutableRecord)

	// nothing reached the database
	assert.NoError(t, mock.ExpectationsWereMet())
}
