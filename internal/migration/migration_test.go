package migration

import (
	"testing"

	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEnsurePaymentIndexesKeepsOneOpenRecord(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(
		&memberdomain.Member{},
		&paymentdomain.PaymentRecord{},
		&sessiondomain.Setting{},
		&auditdomain.AuditLog{},
	))
	require.NoError(t, EnsurePaymentIndexes(conn))

	insert := func(id int64, reference, status string) error {
		return conn.Exec(
			`INSERT INTO payment_records
			     (id, reference, member_id, purpose, session, amount_kobo, status, verified_via, failure_reason, created_at, updated_at)
			 VALUES (?, ?, 7001, 'session_dues', '2025/2026', 500000, ?, '', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
			id, reference, status,
		).Error
	}

	require.NoError(t, insert(1, "MP-DUES-20252026-A", "pending"))

	// Second open record for the same member, purpose and session must be
	// refused by the partial index, not just by the repository guard.
	assert.Error(t, insert(2, "MP-DUES-20252026-B", "pending"))

	// A closed record does not occupy the slot.
	require.NoError(t, conn.Exec(`UPDATE payment_records SET status = 'failed' WHERE id = 1`).Error)
	assert.NoError(t, insert(3, "MP-DUES-20252026-C", "pending"))
}

func TestEnsurePaymentIndexesIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(&paymentdomain.PaymentRecord{}))
	require.NoError(t, EnsurePaymentIndexes(conn))
	require.NoError(t, EnsurePaymentIndexes(conn))
}
