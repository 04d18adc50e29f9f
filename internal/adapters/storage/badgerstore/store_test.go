package badgerstore

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(host, protocol string, status int) domain.Transaction {
	return domain.Transaction{
		Timestamp:      1700000000.5,
		Method:         "GET",
		URL:            protocol + "://" + host + "/index",
		Host:           host,
		Path:           "/index",
		Protocol:       protocol,
		ResponseStatus: &status,
		Duration:       0.2,
	}
}

func TestAppendGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := sample("a.example", "https", 200)
	tx.RequestHeaders = domain.Headers{{Name: "Accept", Value: "application/json"}}
	tx.RequestBody = `{"q":1}`
	tx.Notes = "first capture"

	id, err := s.Append(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	tx.ID = id
	assert.Equal(t, tx, got)
}

func TestAppendValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, domain.Transaction{Method: "GET", URL: "http://x/"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err), "missing host must be a validation error")

	_, err = s.Append(ctx, domain.Transaction{URL: "http://x/", Host: "x"})
	assert.True(t, domain.IsValidation(err), "missing method must be a validation error")

	// nothing persisted
	_, total, err := s.List(ctx, usecase.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListReverseInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, host := range []string{"one.example", "two.example", "three.example"} {
		_, err := s.Append(ctx, sample(host, "https", 200))
		require.NoError(t, err)
	}

	items, total, err := s.List(ctx, usecase.TransactionFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "three.example", items[0].Host)
	assert.Equal(t, "two.example", items[1].Host)
	assert.Equal(t, "one.example", items[2].Host)
}

func TestListFilterAndPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, sample("api.example", "https", 200))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, sample("other.example", "http", 404))
	require.NoError(t, err)

	items, total, err := s.List(ctx, usecase.TransactionFilter{Host: "api.example", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)

	status := 404
	items, total, err = s.List(ctx, usecase.TransactionFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "other.example", items[0].Host)
}

func TestInvalidQueryFailsFast(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.List(context.Background(), usecase.TransactionFilter{Protocol: "gopher"})
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestNoResponseImpliesNoPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := sample("a.example", "https", 200)
	tx.ResponseStatus = nil
	tx.ResponseBody = "should be dropped"
	tx.ResponseHeaders = domain.Headers{{Name: "X", Value: "y"}}

	id, err := s.Append(ctx, tx)
	require.NoError(t, err)
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.ResponseStatus)
	assert.Empty(t, got.ResponseBody)
	assert.Empty(t, got.ResponseHeaders)
}

func TestBodyTruncation(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.BodyMaxBytes = 16
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	tx := sample("a.example", "https", 200)
	tx.RequestBody = strings.Repeat("x", 100)
	id, err := s.Append(ctx, tx)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got.RequestBody, domain.TruncationMarker))
	assert.Equal(t, strings.Repeat("x", 16)+domain.TruncationMarker, got.RequestBody)
}

func TestBodyTruncationRuneBoundary(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.BodyMaxBytes = 5
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	tx := sample("a.example", "https", 200)
	tx.RequestBody = strings.Repeat("é", 4) // 2 bytes per rune, ceiling lands mid-rune
	id, err := s.Append(ctx, tx)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.RequestBody), "truncation must not tear a rune")
	assert.Equal(t, "éé"+domain.TruncationMarker, got.RequestBody)
}

func TestUpdateNotesAndMarkAnalyzed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, sample("a.example", "https", 200))
	require.NoError(t, err)

	require.NoError(t, s.UpdateNotes(ctx, id, "checked"))
	require.NoError(t, s.MarkAnalyzed(ctx, id))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "checked", got.Notes)
	assert.True(t, got.Analyzed)

	require.ErrorIs(t, s.UpdateNotes(ctx, 999, "x"), domain.ErrNotFound)
	require.ErrorIs(t, s.MarkAnalyzed(ctx, 999), domain.ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClearReturnsCountAndIDsNeverReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 4; i++ {
		id, err := s.Append(ctx, sample("a.example", "https", 200))
		require.NoError(t, err)
		lastID = id
	}

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	items, total, err := s.List(ctx, usecase.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	id, err := s.Append(ctx, sample("b.example", "https", 200))
	require.NoError(t, err)
	assert.Greater(t, id, lastID, "ids must keep increasing after clear")
}

func TestForEachStopsEarly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := s.Append(ctx, sample("a.example", "https", 200))
		require.NoError(t, err)
	}
	seen := 0
	err := s.ForEach(ctx, usecase.TransactionFilter{}, func(tx domain.Transaction) (bool, error) {
		seen++
		return seen < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}
