package badger

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/logger"
	"github.com/rehash-labs/erc7739-go/pkg/registry"
)

func newTestStore(t *testing.T) (*BadgerStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	store, err := NewBadgerStore(tmpDir, testLogger)
	require.NoError(t, err)
	return store, tmpDir
}

func testRecord(id string) *registry.AccountRecord {
	return &registry.AccountRecord{
		AccountID: id,
		Owner:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Domain: eip712.Domain{
			Name:              "SmartAccount",
			Version:           "1",
			ChainId:           big.NewInt(1),
			VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		},
		CreatedAt: 1700000000,
		UpdatedAt: 1700000000,
	}
}

func TestBadgerStore_SaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	record := testRecord("acct-1")
	require.NoError(t, store.SaveAccount(record))

	loaded, err := store.GetAccount("acct-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, record.AccountID, loaded.AccountID)
	assert.Equal(t, record.Owner, loaded.Owner)
	assert.Equal(t, record.SkipRehash, loaded.SkipRehash)
	assert.Equal(t, record.Domain.Separator(), loaded.Domain.Separator())
}

func TestBadgerStore_Get_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	loaded, err := store.GetAccount("missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerStore_Save_Nil(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	err := store.SaveAccount(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil AccountRecord")
}

func TestBadgerStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.SaveAccount(testRecord("acct-1")))

	loaded, err := store.GetAccount("acct-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	require.NoError(t, store.DeleteAccount("acct-1"))

	loaded, err = store.GetAccount("acct-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerStore_Delete_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.DeleteAccount("never-existed"))
	require.NoError(t, store.DeleteAccount("never-existed"))
}

func TestBadgerStore_List(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	for _, id := range []string{"acct-c", "acct-a", "acct-b"} {
		require.NoError(t, store.SaveAccount(testRecord(id)))
	}

	records, err := store.ListAccounts()
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Sorted by account id
	assert.Equal(t, "acct-a", records[0].AccountID)
	assert.Equal(t, "acct-b", records[1].AccountID)
	assert.Equal(t, "acct-c", records[2].AccountID)
}

func TestBadgerStore_List_Empty(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	records, err := store.ListAccounts()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBadgerStore_Persistence_AcrossRestarts(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	store, err := NewBadgerStore(tmpDir, testLogger)
	require.NoError(t, err)

	record := testRecord("acct-durable")
	record.SkipRehash = true
	require.NoError(t, store.SaveAccount(record))
	require.NoError(t, store.Close())

	// Reopen at the same path
	store, err = NewBadgerStore(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, err := store.GetAccount("acct-durable")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.SkipRehash)
	assert.Equal(t, record.Domain.Separator(), loaded.Domain.Separator())
}

func TestBadgerStore_Close(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Close())

	err := store.SaveAccount(testRecord("acct-1"))
	assert.Error(t, err)

	_, err = store.GetAccount("acct-1")
	assert.Error(t, err)

	assert.Error(t, store.HealthCheck())
}

func TestBadgerStore_Close_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestBadgerStore_HealthCheck(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.HealthCheck())
}

func TestBadgerStore_ThreadSafety(t *testing.T) {
	store, _ := newTestStore(t)
	defer func() { _ = store.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("acct-%d", n)
			_ = store.SaveAccount(testRecord(id))
			_, _ = store.GetAccount(id)
		}(i)
	}
	wg.Wait()

	records, err := store.ListAccounts()
	require.NoError(t, err)
	assert.Len(t, records, 10)
}
