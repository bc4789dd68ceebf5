package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

var permissionColumns = []string{
	"key", "name", "description", "category", "risk_level",
	"requires_mfa", "requires_approval", "deprecated", "created_at",
}

func TestPermissionsStoreCreatePermission(t *testing.T) {
	p := model.Permission{Key: "users.delete", Name: "Delete Users", Category: "users", RiskLevel: 5, RequiresMFA: true, RequiresApproval: true}

	t.Run("inserts new key", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO "permissions" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		inserted, err := NewPermissionsStore(db).CreatePermission(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing key writes nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`INSERT INTO "permissions" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := NewPermissionsStore(db).CreatePermission(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPermissionsStoreFetchPermission(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPermissionsStore(db)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "permissions" WHERE key = \$1`).
		WithArgs("fuel.create").
		WillReturnRows(sqlmock.NewRows(permissionColumns).
			AddRow("fuel.create", "Create Fuel", "", "fuel", 2, false, false, false, created))
	mock.ExpectQuery(`SELECT \* FROM "permissions" WHERE key = \$1`).
		WithArgs("fleet.teleport").
		WillReturnRows(sqlmock.NewRows(permissionColumns))

	p, err := s.FetchPermission(context.Background(), "fuel.create")
	require.NoError(t, err)
	assert.Equal(t, 2, p.RiskLevel)
	assert.Equal(t, "fuel", p.Category)

	_, err = s.FetchPermission(context.Background(), "fleet.teleport")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsStoreListPermissions(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "permissions" WHERE category = \$1 ORDER BY category, key`).
		WithArgs("audit").
		WillReturnRows(sqlmock.NewRows(permissionColumns).
			AddRow("audit.delete", "Delete Audit Logs", "", "audit", 5, true, true, false, time.Now()).
			AddRow("audit.view", "View Audit Logs", "", "audit", 3, true, false, false, time.Now()))

	permissions, err := NewPermissionsStore(db).ListPermissions(context.Background(), "audit")
	require.NoError(t, err)
	require.Len(t, permissions, 2)
	assert.Equal(t, "audit.delete", permissions[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsStoreDeprecatePermission(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPermissionsStore(db)

	mock.ExpectExec(`UPDATE "permissions" SET "deprecated"=\$1 WHERE key = \$2`).
		WithArgs(true, "api.view_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "permissions" SET "deprecated"=\$1 WHERE key = \$2`).
		WithArgs(true, "missing.key").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeprecatePermission(context.Background(), "api.view_tokens"))
	assert.ErrorIs(t, s.DeprecatePermission(context.Background(), "missing.key"), store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
