package filetracking

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func record(code string) *models.TrackingRecord {
	lat, lng := 6.8276, -5.2893
	return &models.TrackingRecord{
		Code:         code,
		Name:         "Kouame A.",
		Phone:        "+2250701020304",
		Neighborhood: "Cocody",
		Latitude:     &lat,
		Longitude:    &lng,
		InputKind:    models.InputKindText,
		Description:  "panne d'éclairage",
		HasAudio:     false,
		HasPhoto:     true,
		Notification: models.NotificationOutcome{Channel: models.ChannelNone},
		Status:       models.RequestStatusSubmitted,
		CreatedAt:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestStorage_PutGetRoundTrip(t *testing.T) {
	st := New(t.TempDir(), "")
	ctx := context.Background()

	want := record("EBF_0042")
	require.NoError(t, st.Put(ctx, want.Code, want))

	got, err := st.Get(ctx, "EBF_0042")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStorage_GetUnknownIsIdempotent(t *testing.T) {
	st := New(t.TempDir(), "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := st.Get(ctx, "EBF_9999")
		require.True(t, errors.Is(err, ErrNotFound))
	}

	m, err := st.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestStorage_LoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, "")
	ctx := context.Background()

	m, err := st.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, m)

	require.NoError(t, os.WriteFile(filepath.Join(dir, storeFilename), []byte("{not json"), 0o644))
	m, err = st.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestStorage_FallbackOnUnwritablePrimary(t *testing.T) {
	dir := t.TempDir()
	// Путь под обычным файлом: MkdirAll гарантированно падает даже под root.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	primary := filepath.Join(blocker, "store")
	fallback := filepath.Join(dir, "volatile")

	st := New(primary, fallback)
	ctx := context.Background()

	rec := record("EBF_0001")
	require.NoError(t, st.Put(ctx, rec.Code, rec))
	require.True(t, st.Downgraded())

	got, err := st.Get(ctx, "EBF_0001")
	require.NoError(t, err)
	require.Equal(t, rec.Code, got.Code)

	_, err = os.Stat(filepath.Join(fallback, storeFilename))
	require.NoError(t, err)
}

func TestStorage_BothLocationsUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	st := New(filepath.Join(blocker, "a"), filepath.Join(blocker, "b"))
	err := st.Put(context.Background(), "EBF_0001", record("EBF_0001"))
	require.True(t, errors.Is(err, ErrUnwritable))
}

func TestStorage_ConcurrentPutsDoNotLoseRecords(t *testing.T) {
	st := New(t.TempDir(), "")
	ctx := context.Background()

	codes := []string{"EBF_0001", "EBF_0002", "EBF_0003", "EBF_0004", "EBF_0005"}
	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			require.NoError(t, st.Put(ctx, code, record(code)))
		}(code)
	}
	wg.Wait()

	m, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, m, len(codes))
}
