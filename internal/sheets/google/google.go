package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

var _ ports.ExpenseMirror = (*Client)(nil)

const (
	defaultSheetName = "Expenses"
	rowDateLayout    = "2006-01-02 15:04:05"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client appends stored expenses as rows of one sheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetName:     strings.TrimSpace(sheetName),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// credentialsJSON prefers inline JSON, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialsJSON(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.ServiceAccountJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Row renders an expense in sheet column order: date, description, amount,
// category, id.
func Row(e core.Expense, category string) []any {
	return []any{
		e.CreatedAt.UTC().Format(rowDateLayout),
		e.Description,
		e.Amount.Float64(),
		category,
		e.ID,
	}
}

// MirrorExpense appends e below the last row of the sheet and returns the
// updated range.
func (c *Client) MirrorExpense(ctx context.Context, e core.Expense, category string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{Row(e, category)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Expense mirrored",
		log.FieldExpenseID, e.ID,
		log.FieldMirrorRef, ref)
	return ref, nil
}
