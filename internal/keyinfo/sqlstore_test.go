package keyinfo_test

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	internalkeyinfo "github.com/systmms/keyops/internal/keyinfo"
	"github.com/systmms/keyops/pkg/requests"
)

func newMockStore(t *testing.T) (*internalkeyinfo.SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return internalkeyinfo.NewSQLStore(db, "mysql"), mock
}

func TestSQLStoreGetMiss(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}))

	got, err := store.Get(testTriple("app-a", "k1"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetHit(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	info := testInfo(7)
	attrs, err := cbor.Marshal(info.Attributes)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}).AddRow(info.ID, attrs))

	got, err := store.Get(testTriple("app-a", "k1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, info.Attributes, got.Attributes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsertNew(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	info := testInfo(3)

	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}))
	mock.ExpectExec(`INSERT INTO key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	prev, err := store.Insert(testTriple("app-a", "k1"), info)
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsertOverwriteReturnsPrevious(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	old := testInfo(1)
	oldAttrs, err := cbor.Marshal(old.Attributes)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}).AddRow(old.ID, oldAttrs))
	mock.ExpectExec(`UPDATE key_info SET`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "app-a", requests.ProviderPkcs11, "k1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	prev, err := store.Insert(testTriple("app-a", "k1"), testInfo(2))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, old.ID, prev.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreRemove(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	info := testInfo(5)
	attrs, err := cbor.Marshal(info.Attributes)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}).AddRow(info.ID, attrs))
	mock.ExpectExec(`DELETE FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := store.Remove(testTriple("app-a", "k1"))
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, info.ID, removed.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreRemoveMiss(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "attributes"}))

	removed, err := store.Remove(testTriple("app-a", "k1"))
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreExists(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT 1 FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := store.Exists(testTriple("app-a", "k1"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreList(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT app, key_name FROM key_info WHERE provider`).
		WithArgs(requests.ProviderPkcs11).
		WillReturnRows(sqlmock.NewRows([]string{"app", "key_name"}).
			AddRow("app-a", "k1").
			AddRow("app-b", "k2"))

	triples, err := store.List(requests.ProviderPkcs11)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "app-a", triples[0].App)
	assert.Equal(t, requests.ProviderPkcs11, triples[0].Provider)
	assert.Equal(t, "k2", triples[1].KeyName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreBackendErrorSurfaces(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT key_id, attributes FROM key_info`).
		WithArgs("app-a", requests.ProviderPkcs11, "k1").
		WillReturnError(assert.AnError)

	_, err := store.Get(testTriple("app-a", "k1"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
