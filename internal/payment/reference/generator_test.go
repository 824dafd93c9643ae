package reference

import (
	"context"
	"strings"
	"testing"

	"github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	domain.Repository
	exists bool
	calls  int
}

func (f *fakeRepo) ReferenceExists(ctx context.Context, db *gorm.DB, reference string) (bool, error) {
	f.calls++
	return f.exists, nil
}

func TestFormat(t *testing.T) {
	ref := Format(domain.PurposeSessionDues, "2025/2026", "0123456789")
	require.Equal(t, "MP-DUES-20252026-0123456789", ref)

	ref = Format(domain.PurposeMembershipFee, "", "ABCDEFGHJK")
	require.Equal(t, "MP-MEM-ABCDEFGHJK", ref)
}

func TestGenerateShape(t *testing.T) {
	gen := NewGenerator(nil, &fakeRepo{})

	ref, err := gen.Generate(context.Background(), domain.PurposeSessionDues, "2025/2026")
	require.NoError(t, err)

	parts := strings.Split(ref, "-")
	require.Len(t, parts, 4)
	require.Equal(t, "MP", parts[0])
	require.Equal(t, "DUES", parts[1])
	require.Equal(t, "20252026", parts[2])
	require.Len(t, parts[3], suffixLen)
}

func TestGenerateSuffixesDiffer(t *testing.T) {
	gen := NewGenerator(nil, &fakeRepo{})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := gen.Generate(context.Background(), domain.PurposeMembershipFee, "")
		require.NoError(t, err)
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestGenerateBoundedRetries(t *testing.T) {
	repo := &fakeRepo{exists: true}
	gen := NewGenerator(nil, repo)

	_, err := gen.Generate(context.Background(), domain.PurposeSessionDues, "2025/2026")
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, maxAttempts, repo.calls)
}
