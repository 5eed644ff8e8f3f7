package sms

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
	"expensetracker/internal/storage/memory"
)

const merchantMsg = "TxId:998877*S*Your payment of 5,000 RWF to Jane Doe was completed at 2024-01-02 09:15:00"

var fixedNow = time.Date(2025, 5, 20, 18, 0, 0, 0, time.UTC)

func newParser(store Store, opts ...Option) *Parser {
	return New(store, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func countExpenses(t *testing.T, s *memory.Store) int {
	t.Helper()
	list, err := s.ListExpenses(context.Background(), core.ExpenseFilter{})
	if err != nil {
		t.Fatal(err)
	}
	return len(list)
}

func TestIngestUnrecognizedIsIgnored(t *testing.T) {
	store := memory.New(memory.DefaultCategories)
	p := newParser(store)
	for _, msg := range []string{
		"",
		"hello there",
		"Your balance is 12,000 RWF",
		"TxId:abc*S*Your payment of 5,000 RWF to Jane was completed at 2024-01-02 09:15:00",
	} {
		res, err := p.Ingest(context.Background(), msg)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", msg, err)
		}
		if res.Outcome != OutcomeIgnored {
			t.Fatalf("%q: expected ignored, got %s", msg, res.Outcome)
		}
	}
	if n := countExpenses(t, store); n != 0 {
		t.Fatalf("expected no expenses, got %d", n)
	}
}

func TestIngestMerchantPaymentEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.DefaultCategories)
	p := newParser(store)

	res, err := p.Ingest(ctx, merchantMsg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSaved || res.Amount.Float64() != 5000.0 || res.Recipient != "Jane Doe" || res.ExpenseID == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	e, err := store.GetExpense(ctx, res.ExpenseID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if e.Description != "MoMo payment to Jane Doe (TxId:998877)" {
		t.Fatalf("unexpected description %q", e.Description)
	}
	if !e.CreatedAt.Equal(time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed timestamp, got %v", e.CreatedAt)
	}
	other, _ := store.GetCategoryByName(ctx, core.FallbackCategory)
	if e.CategoryID != other.ID {
		t.Fatalf("expected fallback category, got %d", e.CategoryID)
	}

	again, err := p.Ingest(ctx, merchantMsg)
	if err != nil {
		t.Fatalf("unexpected error on resubmit: %v", err)
	}
	if again.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", again.Outcome)
	}
	if n := countExpenses(t, store); n != 1 {
		t.Fatalf("expected exactly one expense, got %d", n)
	}
}

func TestIngestMatchesAnywhereCaseInsensitive(t *testing.T) {
	store := memory.New(memory.DefaultCategories)
	p := newParser(store)
	msg := "Dear customer, txid:42*s*YOUR PAYMENT OF 1,250 rwf TO  Shop Ltd  WAS COMPLETED AT 2024-03-10 14:22:00. Fee 0 RWF. Thank you"
	res, err := p.Ingest(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSaved || res.Amount.Cents != 125000 || res.Recipient != "Shop Ltd" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// Transfers carry no transaction id, so identical messages are recorded
// every time they arrive.
func TestIngestTransferIsNotDeduplicated(t *testing.T) {
	store := memory.New(memory.DefaultCategories)
	p := newParser(store)
	msg := "*165*S*12,345 RWF transferred to John Smith (250788000000) at 2024-03-10 14:22:00"

	var ids []int64
	for i := 0; i < 2; i++ {
		res, err := p.Ingest(context.Background(), msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Outcome != OutcomeSaved || res.Amount.Float64() != 12345.0 {
			t.Fatalf("submission %d: unexpected result %+v", i, res)
		}
		ids = append(ids, res.ExpenseID)
	}
	if ids[0] == ids[1] {
		t.Fatalf("expected distinct expenses, got %v", ids)
	}
	if n := countExpenses(t, store); n != 2 {
		t.Fatalf("expected two expenses, got %d", n)
	}
}

func TestParseRejectsBadAmountsAsNonMatch(t *testing.T) {
	p := newParser(memory.New(nil))
	for _, amount := range []string{"0", "0,000", ",,,"} {
		msg := "TxId:1*S*Your payment of " + amount + " RWF to X was completed at 2024-01-02 09:15:00"
		if _, ok := p.Parse(msg); ok {
			t.Fatalf("amount %q should not match", amount)
		}
	}
}

func TestParseFallsThroughToNextPattern(t *testing.T) {
	reject := Pattern{Name: "zero", Expr: regexp.MustCompile(`(?P<amount>0) RWF to (?P<recipient>\w+)`)}
	accept := Pattern{Name: "any", Expr: regexp.MustCompile(`(?P<amount>\d+) RWF for (?P<recipient>\w+)`)}
	p := newParser(memory.New(nil), WithPatterns([]Pattern{reject, accept}))

	tx, ok := p.Parse("0 RWF to Bob; 700 RWF for Alice")
	if !ok || tx.Pattern != "any" || tx.Amount.Cents != 70000 || tx.Recipient != "Alice" {
		t.Fatalf("unexpected parse: %+v ok=%v", tx, ok)
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	a := Pattern{Name: "a", Expr: regexp.MustCompile(`(?P<amount>\d+) to (?P<recipient>\w+)`)}
	b := Pattern{Name: "b", Expr: regexp.MustCompile(`(?P<amount>\d+) to (?P<recipient>\w+)`)}
	p := newParser(memory.New(nil), WithPatterns([]Pattern{a, b}))
	tx, ok := p.Parse("5 to Z")
	if !ok || tx.Pattern != "a" {
		t.Fatalf("expected first pattern, got %+v", tx)
	}
}

func TestParseTimestamp(t *testing.T) {
	p := newParser(memory.New(nil))
	ts, err := p.ParseTimestamp("2024-03-10 14:22:00")
	if err != nil || !ts.Equal(time.Date(2024, 3, 10, 14, 22, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v (err=%v)", ts, err)
	}
	if _, err := p.ParseTimestamp("garbage"); err == nil {
		t.Fatalf("expected error for garbage")
	}

	kigali := time.FixedZone("CAT", 2*3600)
	p = newParser(memory.New(nil), WithLocation(kigali))
	ts, _ = p.ParseTimestamp("2024-03-10 14:22:00")
	if !ts.Equal(time.Date(2024, 3, 10, 12, 22, 0, 0, time.UTC)) {
		t.Fatalf("expected zone-aware timestamp, got %v", ts.UTC())
	}
}

func TestIngestBadTimestampKeepsCreationTime(t *testing.T) {
	store := memory.New(memory.DefaultCategories)
	custom := Pattern{
		Name: "custom",
		Expr: regexp.MustCompile(`Paid (?P<amount>[\d,]+) RWF to (?P<recipient>.+?) ref (?P<txid>\d+) on (?P<date>\S+)`),
	}
	p := newParser(store, WithPatterns([]Pattern{custom}))

	res, err := p.Ingest(context.Background(), "Paid 300 RWF to Cafe ref 77 on garbage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSaved {
		t.Fatalf("expected saved, got %s", res.Outcome)
	}
	e, _ := store.GetExpense(context.Background(), res.ExpenseID)
	if !e.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected creation time %v, got %v", fixedNow, e.CreatedAt)
	}
}

func TestIngestMissingFallbackCategory(t *testing.T) {
	store := memory.New([]string{"Food"})
	p := newParser(store)
	_, err := p.Ingest(context.Background(), merchantMsg)
	if !errors.Is(err, ErrFallbackCategoryMissing) {
		t.Fatalf("expected ErrFallbackCategoryMissing, got %v", err)
	}
	if !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected wrapped ErrCategoryNotFound, got %v", err)
	}
	if n := countExpenses(t, store); n != 0 {
		t.Fatalf("expected no expenses, got %d", n)
	}
}

func TestIngestCustomFallbackCategory(t *testing.T) {
	ctx := context.Background()
	store := memory.New([]string{"MoMo"})
	p := newParser(store, WithFallbackCategory("MoMo"))
	res, err := p.Ingest(ctx, merchantMsg)
	if err != nil || res.Outcome != OutcomeSaved {
		t.Fatalf("unexpected result %+v (err=%v)", res, err)
	}
	e, _ := store.GetExpense(ctx, res.ExpenseID)
	cat, _ := store.GetCategoryByName(ctx, "MoMo")
	if e.CategoryID != cat.ID {
		t.Fatalf("expected MoMo category")
	}
}

// racingStore hides existing rows from the lookup so the store's unique
// reference check is what detects the duplicate.
type racingStore struct {
	*memory.Store
}

func (racingStore) FindExpenseByDescription(context.Context, string) (core.Expense, bool, error) {
	return core.Expense{}, false, nil
}

func TestIngestUniqueBackstopReportsDuplicate(t *testing.T) {
	store := racingStore{memory.New(memory.DefaultCategories)}
	p := newParser(store)
	if res, _ := p.Ingest(context.Background(), merchantMsg); res.Outcome != OutcomeSaved {
		t.Fatalf("expected saved, got %s", res.Outcome)
	}
	res, err := p.Ingest(context.Background(), merchantMsg)
	if err != nil || res.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %+v (err=%v)", res, err)
	}
}

// snapshotPublisher reads the announced expense back at publish time, the
// way the mirror worker does.
type snapshotPublisher struct {
	store *memory.Store
	seen  []core.Expense
}

func (p *snapshotPublisher) PublishExpenseSync(ctx context.Context, id int64) error {
	e, err := p.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	p.seen = append(p.seen, e)
	return nil
}

func TestIngestAnnouncesExpenseWithParsedTimestamp(t *testing.T) {
	store := memory.New(memory.DefaultCategories)
	pub := &snapshotPublisher{store: store}
	p := newParser(services.NewExpenseService(store, pub, nil))

	res, err := p.Ingest(context.Background(), merchantMsg)
	if err != nil || res.Outcome != OutcomeSaved {
		t.Fatalf("unexpected result %+v (err=%v)", res, err)
	}
	if len(pub.seen) != 1 {
		t.Fatalf("expected one sync message, got %d", len(pub.seen))
	}
	want := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	if !pub.seen[0].CreatedAt.Equal(want) {
		t.Fatalf("published expense has created_at %v, want %v", pub.seen[0].CreatedAt, want)
	}
}

type failingLookupStore struct {
	*memory.Store
}

func (failingLookupStore) FindExpenseByDescription(context.Context, string) (core.Expense, bool, error) {
	return core.Expense{}, false, errors.New("connection reset")
}

func TestIngestLookupFailureIsError(t *testing.T) {
	p := newParser(failingLookupStore{memory.New(memory.DefaultCategories)})
	if _, err := p.Ingest(context.Background(), merchantMsg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResultJSON(t *testing.T) {
	cases := []struct {
		res  Result
		want string
	}{
		{Result{Outcome: OutcomeIgnored}, `{"ignored":true}`},
		{Result{Outcome: OutcomeDuplicate}, `{"duplicate":true}`},
		{Result{Outcome: OutcomeSaved, Amount: core.Money{Cents: 500000}, Recipient: "Jane Doe", ExpenseID: 7},
			`{"saved":true,"amount":5000,"recipient":"Jane Doe","expense_id":7}`},
	}
	for _, tc := range cases {
		got, err := json.Marshal(tc.res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(got) != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}
}

func TestDescribeKeepsMarker(t *testing.T) {
	if got := Describe("Jane", ""); got != "MoMo payment to Jane" {
		t.Fatalf("unexpected description %q", got)
	}
	long := strings.Repeat("é", 300)
	got := Describe(long, "123")
	if len(got) > 200 || !strings.HasSuffix(got, "(TxId:123)") {
		t.Fatalf("unexpected long description (%d bytes): %q", len(got), got)
	}
	if !strings.HasPrefix(got, "MoMo payment to é") {
		t.Fatalf("expected truncated recipient, got %q", got)
	}
}
