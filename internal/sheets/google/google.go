package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"asistencia/internal/core"
	ports "asistencia/internal/sheets"
)

// DefaultSheetName is the worksheet Google Forms writes responses to.
const DefaultSheetName = "Respuestas de formulario 1"

// lastColumn bounds the read range; the form has far fewer columns.
const lastColumn = "ZZ"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.TableReader = (*Client)(nil)

// Credentials selects the service account key. JSON wins over File.
type Credentials struct {
	JSON []byte
	File string
}

// Load returns the raw key bytes.
func (c Credentials) Load() ([]byte, error) {
	switch {
	case len(c.JSON) > 0:
		return c.JSON, nil
	case c.File != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// New creates a read-only Sheets client authenticated as a service account.
func New(ctx context.Context, spreadsheetID, sheetName string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	key, err := creds.Load()
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func newSheetsService(ctx context.Context, key []byte) (*gsheet.Service, error) {
	creds, err := gauth.CredentialsFromJSON(ctx, key, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"project", creds.ProjectID,
		"scope", gsheet.SpreadsheetsReadonlyScope)

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(newHTTPClientWithPooling(ctx, creds)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClientWithPooling returns an authenticated client with bounded
// timeouts and connection reuse for the Sheets API host.
func newHTTPClientWithPooling(ctx context.Context, creds *gauth.Credentials) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	base := &http.Client{Transport: transport, Timeout: 60 * time.Second}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, creds.TokenSource)
}

// SheetRange is the A1 range covering the whole worksheet.
func (c *Client) SheetRange() string {
	return fmt.Sprintf("'%s'!A:%s", strings.ReplaceAll(c.sheetName, "'", "''"), lastColumn)
}

// ReadTable fetches the worksheet with formatted values, the way a person
// sees it in the browser.
func (c *Client) ReadTable(ctx context.Context) (core.Table, error) {
	if c.svc == nil {
		return core.Table{}, errors.New("sheets service not initialized")
	}
	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.SheetRange()).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return core.Table{}, fmt.Errorf("read %s: %w", c.SheetRange(), err)
	}
	t, err := parseTable(resp.Values)
	if err != nil {
		return core.Table{}, fmt.Errorf("parse %s: %w", c.sheetName, err)
	}
	slog.DebugContext(ctx, "Read attendance sheet",
		"sheet", c.sheetName,
		"rows", len(t.Rows),
		"columns", len(t.Header),
		"duration_ms", time.Since(start).Milliseconds())
	return t, nil
}

// parseTable converts the Sheets API values matrix into a table. The API
// trims trailing empty cells, so rows are padded to the header width.
func parseTable(values [][]interface{}) (core.Table, error) {
	if len(values) == 0 {
		return core.Table{}, core.ErrEmptyTable
	}
	header := toStrings(values[0])
	if allBlank(header) {
		return core.Table{}, core.ErrEmptyTable
	}
	t := core.Table{Header: header, Rows: make([][]string, 0, len(values)-1)}
	for _, raw := range values[1:] {
		row := toStrings(raw)
		for len(row) < len(header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func allBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
