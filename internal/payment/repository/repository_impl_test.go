package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brightmoja/memberpay/internal/payment/domain"
	paymentrepo "github.com/brightmoja/memberpay/internal/payment/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE payment_records (
			id BIGINT PRIMARY KEY,
			reference TEXT NOT NULL,
			member_id BIGINT NOT NULL,
			purpose TEXT NOT NULL,
			session TEXT NOT NULL DEFAULT '',
			amount_kobo BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			verified_at DATETIME,
			verified_via TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			gateway_payload TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_records_reference ON payment_records(reference)`,
		`CREATE UNIQUE INDEX ux_payment_records_open
			ON payment_records(member_id, purpose, session)
			WHERE status IN ('pending', 'verified')`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func pendingRecord(node *snowflake.Node, reference string, memberID snowflake.ID) *domain.PaymentRecord {
	now := time.Now().UTC()
	return &domain.PaymentRecord{
		ID:         node.Generate(),
		Reference:  reference,
		MemberID:   memberID,
		Purpose:    domain.PurposeSessionDues,
		Session:    "2025/2026",
		AmountKobo: 500_000,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateRejectsSecondOpenRecord(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := paymentrepo.Provide()

	memberID := node.Generate()
	first := pendingRecord(node, "MP-DUES-20252026-AAAA111111", memberID)
	if err := repo.Create(ctx, db, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := pendingRecord(node, "MP-DUES-20252026-BBBB222222", memberID)
	err := repo.Create(ctx, db, second)
	if !errors.Is(err, domain.ErrDuplicatePayment) {
		t.Fatalf("expected duplicate payment, got %v", err)
	}

	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM payment_records`).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestCreateAllowsNewAttemptAfterFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := paymentrepo.Provide()

	memberID := node.Generate()
	first := pendingRecord(node, "MP-DUES-20252026-CCCC333333", memberID)
	if err := repo.Create(ctx, db, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	if _, err := repo.Transition(ctx, db, first.Reference, domain.StatusPending, domain.StatusFailed, domain.TransitionMeta{
		Source:        domain.SourceRedirect,
		FailureReason: "declined",
	}); err != nil {
		t.Fatalf("fail first: %v", err)
	}

	retry := pendingRecord(node, "MP-DUES-20252026-DDDD444444", memberID)
	if err := repo.Create(ctx, db, retry); err != nil {
		t.Fatalf("create retry after failure: %v", err)
	}
}

func TestCreateRejectsReusedReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := paymentrepo.Provide()

	first := pendingRecord(node, "MP-DUES-20252026-EEEE555555", node.Generate())
	if err := repo.Create(ctx, db, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	// Same reference, different member so the open-record guard passes and
	// the unique reference index is what trips.
	clash := pendingRecord(node, first.Reference, node.Generate())
	err := repo.Create(ctx, db, clash)
	if !errors.Is(err, domain.ErrReferenceExists) {
		t.Fatalf("expected reference exists, got %v", err)
	}
}

func TestTransitionIsSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := paymentrepo.Provide()

	record := pendingRecord(node, "MP-DUES-20252026-FFFF666666", node.Generate())
	if err := repo.Create(ctx, db, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	verifiedAt := time.Now().UTC()
	const callers = 8
	var wins, stales int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transition(ctx, db, record.Reference, domain.StatusPending, domain.StatusVerified, domain.TransitionMeta{
				Source:     domain.SourceWebhook,
				VerifiedAt: &verifiedAt,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrStaleTransition):
				stales++
			default:
				t.Errorf("unexpected transition error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if stales != callers-1 {
		t.Fatalf("expected %d stale losers, got %d", callers-1, stales)
	}

	current, err := repo.FindByReference(ctx, db, record.Reference)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if current.Status != domain.StatusVerified {
		t.Fatalf("expected verified, got %s", current.Status)
	}
	if current.VerifiedVia != domain.SourceWebhook {
		t.Fatalf("expected webhook channel, got %s", current.VerifiedVia)
	}
}

func TestTransitionStaleReturnsCurrentState(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := paymentrepo.Provide()

	record := pendingRecord(node, "MP-DUES-20252026-GGGG777777", node.Generate())
	if err := repo.Create(ctx, db, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Transition(ctx, db, record.Reference, domain.StatusPending, domain.StatusFailed, domain.TransitionMeta{
		Source:        domain.SourceRedirect,
		FailureReason: "declined",
	}); err != nil {
		t.Fatalf("fail: %v", err)
	}

	current, err := repo.Transition(ctx, db, record.Reference, domain.StatusPending, domain.StatusVerified, domain.TransitionMeta{
		Source: domain.SourceWebhook,
	})
	if !errors.Is(err, domain.ErrStaleTransition) {
		t.Fatalf("expected stale transition, got %v", err)
	}
	if current == nil || current.Status != domain.StatusFailed {
		t.Fatalf("expected failed state returned with stale error, got %+v", current)
	}
}

func TestTransitionUnknownReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := paymentrepo.Provide()

	_, err := repo.Transition(ctx, db, "MP-DUES-20252026-NOPE000000", domain.StatusPending, domain.StatusVerified, domain.TransitionMeta{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
