package issuance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatKobo(t *testing.T) {
	require.Equal(t, "NGN 5,000.00", FormatKobo(500_000))
	require.Equal(t, "NGN 10,000.00", FormatKobo(1_000_000))
	require.Equal(t, "NGN 0.50", FormatKobo(50))
	require.Equal(t, "NGN 1,234,567.89", FormatKobo(123_456_789))
}
