package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(ttl)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestIssueAndConsume(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	code, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, store.Consume(PurposeSignup, "jane@example.com", code, ""))

	// Single use: a second consume fails.
	require.ErrorIs(t, store.Consume(PurposeSignup, "jane@example.com", code, ""), ErrCodeInvalid)
}

func TestConsumeWrongCodeKeepsEntry(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	code, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)

	require.ErrorIs(t, store.Consume(PurposeSignup, "jane@example.com", "000000", ""), ErrCodeInvalid)
	require.NoError(t, store.Consume(PurposeSignup, "jane@example.com", code, ""))
}

func TestConsumeExpired(t *testing.T) {
	store, now := newTestStore(t, 10*time.Minute)

	code, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)

	*now = now.Add(11 * time.Minute)
	require.ErrorIs(t, store.Consume(PurposeSignup, "jane@example.com", code, ""), ErrCodeExpired)

	// The expired entry is gone; retrying reports invalid, not expired.
	require.Zero(t, store.Len())
	require.ErrorIs(t, store.Consume(PurposeSignup, "jane@example.com", code, ""), ErrCodeInvalid)
}

func TestPurgeOnAccess(t *testing.T) {
	store, now := newTestStore(t, 10*time.Minute)

	_, err := store.Issue(PurposeSignup, "a@example.com", "")
	require.NoError(t, err)
	_, err = store.Issue(PurposeSignup, "b@example.com", "")
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	*now = now.Add(11 * time.Minute)
	_, err = store.Issue(PurposeSignup, "c@example.com", "")
	require.NoError(t, err)

	// The two expired entries were dropped by the Issue call.
	require.Equal(t, 1, store.Len())
}

func TestPurposesAreIndependent(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	signup, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)
	deletion, err := store.Issue(PurposeDeletion, "jane@example.com", "user-1")
	require.NoError(t, err)

	require.ErrorIs(t, store.Consume(PurposeDeletion, "jane@example.com", signup, "user-1"), ErrCodeInvalid)
	require.NoError(t, store.Consume(PurposeDeletion, "jane@example.com", deletion, "user-1"))
}

func TestDeletionCodeBoundToUser(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	code, err := store.Issue(PurposeDeletion, "jane@example.com", "user-1")
	require.NoError(t, err)

	require.ErrorIs(t, store.Consume(PurposeDeletion, "jane@example.com", code, "user-2"), ErrCodeInvalid)
	require.NoError(t, store.Consume(PurposeDeletion, "jane@example.com", code, "user-1"))
}

func TestReissueReplacesCode(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	first, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)
	second, err := store.Issue(PurposeSignup, "jane@example.com", "")
	require.NoError(t, err)

	if first != second {
		require.ErrorIs(t, store.Consume(PurposeSignup, "jane@example.com", first, ""), ErrCodeInvalid)
	}
	require.NoError(t, store.Consume(PurposeSignup, "jane@example.com", second, ""))
}
