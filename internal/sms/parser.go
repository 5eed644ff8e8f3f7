// Package sms turns mobile-money notification texts into expenses.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

// ErrFallbackCategoryMissing means the category parsed expenses are filed
// under does not exist. It is a deployment problem, not a message problem.
var ErrFallbackCategoryMissing = errors.New("fallback category missing")

// Store is the slice of the data layer the parser needs.
type Store interface {
	ports.ExpenseWriter
	ports.ExpenseFinder
}

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSaved     Outcome = "saved"
)

// Transaction is what a matched pattern extracted from a message.
type Transaction struct {
	Pattern   string
	Amount    core.Money
	Recipient string
	TxID      string
	Timestamp time.Time // zero when absent or unparseable
}

// Result is the outcome of ingesting one message.
type Result struct {
	Outcome   Outcome
	Amount    core.Money
	Recipient string
	ExpenseID int64
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Outcome {
	case OutcomeSaved:
		return json.Marshal(struct {
			Saved     bool    `json:"saved"`
			Amount    float64 `json:"amount"`
			Recipient string  `json:"recipient"`
			ExpenseID int64   `json:"expense_id"`
		}{true, r.Amount.Float64(), r.Recipient, r.ExpenseID})
	case OutcomeDuplicate:
		return []byte(`{"duplicate":true}`), nil
	default:
		return []byte(`{"ignored":true}`), nil
	}
}

// Parser matches messages against an ordered pattern table and records new
// transactions through the store.
type Parser struct {
	store    Store
	patterns []Pattern
	loc      *time.Location
	now      func() time.Time
	fallback string
	logger   *log.Logger
}

type Option func(*Parser)

// WithPatterns replaces the pattern table.
func WithPatterns(p []Pattern) Option { return func(ps *Parser) { ps.patterns = p } }

// WithLocation sets the zone notification timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option { return func(p *Parser) { p.now = now } }

func WithFallbackCategory(name string) Option {
	return func(p *Parser) {
		if strings.TrimSpace(name) != "" {
			p.fallback = strings.TrimSpace(name)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l.WithComponent(log.ComponentSMS)
		}
	}
}

func New(store Store, opts ...Option) *Parser {
	p := &Parser{
		store:    store,
		patterns: DefaultPatterns(),
		loc:      time.UTC,
		now:      time.Now,
		fallback: core.FallbackCategory,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentSMS),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FallbackCategory is the category new expenses are created under.
func (p *Parser) FallbackCategory() string { return p.fallback }

// Parse returns the first pattern match whose amount is valid.
func (p *Parser) Parse(msg string) (Transaction, bool) {
	for _, pat := range p.patterns {
		m := pat.Expr.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		amount, err := core.ParseAmount(group(pat, m, groupAmount))
		if err != nil {
			p.logger.Debug("Amount rejected, trying next pattern",
				log.FieldOperation, log.OpParse, log.FieldPattern, pat.Name, log.FieldError, err.Error())
			continue
		}
		tx := Transaction{
			Pattern:   pat.Name,
			Amount:    amount,
			Recipient: strings.TrimSpace(group(pat, m, groupRecipient)),
			TxID:      group(pat, m, groupTxID),
		}
		if raw := strings.TrimSpace(group(pat, m, groupDate)); raw != "" {
			if ts, err := p.ParseTimestamp(raw); err == nil {
				tx.Timestamp = ts
			} else {
				p.logger.Debug("Timestamp unparseable, keeping creation time",
					log.FieldOperation, log.OpParse, log.FieldPattern, pat.Name, log.FieldError, err.Error())
			}
		}
		return tx, true
	}
	return Transaction{}, false
}

// ParseTimestamp reads a notification timestamp in the parser's location.
func (p *Parser) ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), p.loc)
}

// Ingest parses msg and records it unless it is unrecognized or already
// recorded. Only ErrFallbackCategoryMissing and storage failures are errors.
func (p *Parser) Ingest(ctx context.Context, msg string) (Result, error) {
	logger := p.logger.With(log.FieldOperation, log.OpIngest)
	tx, ok := p.Parse(msg)
	if !ok {
		logger.DebugContext(ctx, "Message ignored", log.FieldOutcome, OutcomeIgnored)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	if tx.TxID != "" {
		existing, found, err := p.store.FindExpenseByDescription(ctx, txMarker(tx.TxID))
		if err != nil {
			return Result{}, fmt.Errorf("look up transaction %s: %w", tx.TxID, err)
		}
		if found {
			logger.InfoContext(ctx, "Duplicate transaction",
				log.FieldTxID, tx.TxID,
				log.FieldExpenseID, existing.ID,
				log.FieldOutcome, OutcomeDuplicate)
			return Result{Outcome: OutcomeDuplicate}, nil
		}
	}

	createdAt := tx.Timestamp
	if createdAt.IsZero() {
		createdAt = p.now()
	}
	e, err := p.store.CreateExpense(ctx, core.NewExpense{
		Amount:      tx.Amount,
		Description: Describe(tx.Recipient, tx.TxID),
		Category:    p.fallback,
		ExternalRef: tx.TxID,
		CreatedAt:   createdAt,
	})
	switch {
	case errors.Is(err, core.ErrDuplicateExpense):
		// lost a race with a concurrent ingest of the same transaction
		logger.InfoContext(ctx, "Duplicate transaction rejected by store",
			log.FieldTxID, tx.TxID, log.FieldOutcome, OutcomeDuplicate)
		return Result{Outcome: OutcomeDuplicate}, nil
	case errors.Is(err, core.ErrCategoryNotFound):
		return Result{}, fmt.Errorf("%w: %q: %w", ErrFallbackCategoryMissing, p.fallback, err)
	case err != nil:
		return Result{}, fmt.Errorf("create expense: %w", err)
	}

	logger.InfoContext(ctx, "Transaction saved",
		log.FieldPattern, tx.Pattern,
		log.FieldExpenseID, e.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldRecipient, tx.Recipient,
		log.FieldTxID, tx.TxID,
		log.FieldOutcome, OutcomeSaved)

	return Result{Outcome: OutcomeSaved, Amount: tx.Amount, Recipient: tx.Recipient, ExpenseID: e.ID}, nil
}

const (
	descriptionPrefix = "MoMo payment to "
	maxDescription    = 200
)

func txMarker(id string) string { return "(TxId:" + id + ")" }

// Describe builds the expense description, shortening the recipient so the
// transaction marker always survives the length limit.
func Describe(recipient, txID string) string {
	suffix := ""
	if txID != "" {
		suffix = " " + txMarker(txID)
	}
	room := maxDescription - len(descriptionPrefix) - len(suffix)
	if len(recipient) > room {
		recipient = truncate(recipient, room)
	}
	return descriptionPrefix + recipient + suffix
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for len(s) > n {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}
