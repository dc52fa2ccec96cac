// Package google mirrors gift records to a Google spreadsheet, the
// household's shared backup ledger.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"bujo/internal/config"
	ports "bujo/internal/sheets"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
}

// Ensure interface conformance
var (
	_ ports.LedgerAppender = (*Client)(nil)
	_ ports.LedgerRemover  = (*Client)(nil)
)

// NewFromConfig creates a Sheets client using the OAuth client and
// token from configuration. Run cmd/oauth-init once to obtain a token.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	oauthCfg, err := googleauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	httpClient := oauthCfg.Client(ctx, &token)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	ledger := strings.TrimSpace(cfg.GoogleLedgerSheetName)
	if ledger == "" {
		ledger = "Ledger"
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		ledgerSheet:   ledger,
	}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	default:
		return nil, errors.New("neither inline JSON nor file path provided")
	}
}

// Append writes one ledger row below the last used row and returns the
// written range. Column A holds the record id so Remove can find the
// row later.
func (c *Client) Append(ctx context.Context, row ports.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.RecordID == "" {
		return "", errors.New("ledger row missing record id")
	}

	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get ledger dimensions for %s: %w", c.ledgerSheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:I%d", c.ledgerSheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		row.RecordID,
		row.Date,
		row.EventTitle,
		row.EventType,
		row.FriendName,
		row.Relation,
		row.Direction,
		row.AmountWon,
		row.Memo,
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write ledger row in %s: %w", c.ledgerSheet, err)
	}

	return dataRange, nil
}

// Remove finds the row whose first column matches the record id and
// clears it. Missing rows are not an error; the record may never have
// been mirrored.
func (c *Client) Remove(ctx context.Context, recordID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("scan ledger ids in %s: %w", c.ledgerSheet, err)
	}

	rowIndex := -1
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == recordID {
			rowIndex = i + 1 // sheet rows are 1-based
			break
		}
	}
	if rowIndex == -1 {
		return nil
	}

	clearRange := fmt.Sprintf("%s!A%d:I%d", c.ledgerSheet, rowIndex, rowIndex)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear ledger row %s: %w", clearRange, err)
	}

	return nil
}
