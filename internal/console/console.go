// Package console implements the database console: every user-facing
// command of the browser UI and CLI as a method operating on an explicit
// Session. Commands on one database run one at a time.
package console

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/transfer"
)

// Precondition errors.
var (
	ErrNoDatabase = errors.New("no database selected")
	ErrNoTable    = errors.New("no table open")
	ErrEmptyInput = errors.New("input is empty")
)

// Defaults applied to a zero Config.
const (
	DefaultPageSize    = 20
	DefaultMaxPageSize = 1000
)

// ChangeKind classifies change notifications.
type ChangeKind string

// Change kinds.
const (
	ChangeDatabases ChangeKind = "databases"
	ChangeSchema    ChangeKind = "schema"
	ChangeData      ChangeKind = "data"
)

// Change describes a modification other sessions may want to render.
type Change struct {
	Kind ChangeKind
	// Session is the id of the session that made the change.
	Session  string
	Database string
	Table    string
}

// Config configures a Console.
type Config struct {
	Registry          *registry.Registry
	PageSize          int
	MaxPageSize       int
	RequirePrimaryKey bool
	// QueryTimeout bounds every database command. Zero means no limit.
	QueryTimeout time.Duration
	SessionTTL   time.Duration
	Logger       *slog.Logger
	// OnChange is called after a command changed databases, schema or data.
	OnChange func(Change)
}

// Console runs commands against the registry on behalf of sessions.
type Console struct {
	reg       *registry.Registry
	sessions  *SessionManager
	pageSize  int
	maxSize   int
	requirePK bool
	timeout   time.Duration
	logger    *slog.Logger
	onChange  func(Change)
	now       func() time.Time
}

// Download is a file produced by an export command.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Content types of downloads.
const (
	ContentTypeSQLite = "application/vnd.sqlite3"
	ContentTypeCSV    = "text/csv; charset=utf-8"
	ContentTypeSQL    = "application/sql; charset=utf-8"
)

// DatabaseInfo summarizes a registered database for listings.
type DatabaseInfo struct {
	Name    string
	Created time.Time
	Active  bool
}

// QueryResult is the outcome of RunSQL.
type QueryResult struct {
	Results []gateway.ResultSet
	Elapsed time.Duration
}

// New creates a console over cfg.Registry.
func New(cfg Config) *Console {
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	maxSize := cfg.MaxPageSize
	if maxSize < pageSize {
		maxSize = max(DefaultMaxPageSize, pageSize)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	onChange := cfg.OnChange
	if onChange == nil {
		onChange = func(Change) {}
	}
	return &Console{
		reg:       cfg.Registry,
		sessions:  NewSessionManager(cfg.SessionTTL, pageSize),
		pageSize:  pageSize,
		maxSize:   maxSize,
		requirePK: cfg.RequirePrimaryKey,
		timeout:   cfg.QueryTimeout,
		logger:    logger,
		onChange:  onChange,
		now:       time.Now,
	}
}

// Sessions returns the console's session manager.
func (c *Console) Sessions() *SessionManager { return c.sessions }

// Registry returns the registry the console operates on.
func (c *Console) Registry() *registry.Registry { return c.reg }

// MaxPageSize returns the largest page size ChangePageSize accepts.
func (c *Console) MaxPageSize() int { return c.maxSize }

// NewDatabase creates an empty database and makes it active.
func (c *Console) NewDatabase(ctx context.Context, s *Session, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := c.reg.Create(ctx, name)
	if err != nil {
		return err
	}
	s.selectDatabase(h.Name())
	c.onChange(Change{Session: s.ID, Kind: ChangeDatabases, Database: h.Name()})
	return nil
}

// OpenDatabase loads a database image and makes it active.
func (c *Console) OpenDatabase(ctx context.Context, s *Session, name string, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := c.reg.Load(ctx, name, image)
	if err != nil {
		return err
	}
	s.selectDatabase(h.Name())
	c.onChange(Change{Session: s.ID, Kind: ChangeDatabases, Database: h.Name()})
	return nil
}

// SelectDatabase makes a registered database active. The open table, its
// filter and the page snapshot are cleared.
func (c *Console) SelectDatabase(_ context.Context, s *Session, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := c.reg.Select(name)
	if err != nil {
		return err
	}
	s.selectDatabase(h.Name())
	return nil
}

// ExportDatabase serializes the active database.
func (c *Console) ExportDatabase(ctx context.Context, s *Session) (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var image []byte
	err := c.withHandle(ctx, s, func(ctx context.Context, h *registry.Handle, _ *sql.DB) error {
		var err error
		image, err = h.Export(ctx)
		return err
	})
	if err != nil {
		return Download{}, err
	}
	return Download{
		FileName:    transfer.DatabaseFileName(s.database),
		ContentType: ContentTypeSQLite,
		Data:        image,
	}, nil
}

// ListDatabases lists registered databases, marking the session's active one.
func (c *Console) ListDatabases(s *Session) []DatabaseInfo {
	active := s.State().Database
	handles := c.reg.List()
	infos := make([]DatabaseInfo, len(handles))
	for i, h := range handles {
		infos[i] = DatabaseInfo{Name: h.Name(), Created: h.CreatedAt(), Active: h.Name() == active}
	}
	return infos
}

// ListTables lists the tables and views of the active database.
func (c *Console) ListTables(ctx context.Context, s *Session) ([]browser.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tables []browser.Table
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		var err error
		tables, err = browser.Tables(ctx, db)
		return err
	})
	return tables, err
}

// DescribeTable returns the columns of a table or view in the active
// database.
func (c *Console) DescribeTable(ctx context.Context, s *Session, table string) ([]browser.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cols []browser.Column
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		var err error
		cols, err = browser.Columns(ctx, db, table)
		return err
	})
	return cols, err
}

// CreateTable creates table name with the given column definitions, e.g.
// "id INTEGER PRIMARY KEY, name TEXT".
func (c *Console) CreateTable(ctx context.Context, s *Session, name, columnDefs string) error {
	name = strings.TrimSpace(name)
	columnDefs = strings.TrimSpace(columnDefs)
	if name == "" || columnDefs == "" {
		return fmt.Errorf("%w: table name and column definitions are required", ErrEmptyInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", gateway.QuoteIdent(name), columnDefs)
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		_, err := gateway.Execute(ctx, db, stmt)
		return err
	})
	if err != nil {
		return err
	}
	c.logger.Info("table created", "database", s.database, "table", name)
	c.onChange(Change{Session: s.ID, Kind: ChangeSchema, Database: s.database, Table: name})
	return nil
}

// DropTable drops a table or view. The database image is exported first
// and returned as a backup download; if the export fails nothing is
// dropped.
func (c *Console) DropTable(ctx context.Context, s *Session, table string) (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var backup []byte
	err := c.withHandle(ctx, s, func(ctx context.Context, h *registry.Handle, db *sql.DB) error {
		tables, err := browser.Tables(ctx, db)
		if err != nil {
			return err
		}
		kind := ""
		for _, t := range tables {
			if t.Name == table {
				kind = t.Type
			}
		}
		if kind == "" {
			return fmt.Errorf("%w: %s", browser.ErrTableNotFound, table)
		}

		if backup, err = h.Export(ctx); err != nil {
			return fmt.Errorf("backup before drop: %w", err)
		}
		_, err = gateway.Execute(ctx, db, fmt.Sprintf("DROP %s %s", strings.ToUpper(kind), gateway.QuoteIdent(table)))
		return err
	})
	if err != nil {
		return Download{}, err
	}

	if s.table == table {
		s.closeTable()
	}
	c.logger.Info("table dropped", "database", s.database, "table", table, "backup_bytes", len(backup))
	c.onChange(Change{Session: s.ID, Kind: ChangeSchema, Database: s.database, Table: table})
	return Download{
		FileName:    transfer.BackupFileName(s.database, c.now()),
		ContentType: ContentTypeSQLite,
		Data:        backup,
	}, nil
}

// OpenTable opens the first page of table with no filter.
func (c *Console) OpenTable(ctx context.Context, s *Session, table string) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return c.openPage(ctx, s, table, browser.Query{Page: 1, PageSize: s.pageSize})
}

// SetFilter applies a row filter to the open table and returns to page 1.
// A blank filter clears it.
func (c *Console) SetFilter(ctx context.Context, s *Session, filter string) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == "" {
		return nil, ErrNoTable
	}
	return c.openPage(ctx, s, s.table, browser.Query{Page: 1, PageSize: s.pageSize, Filter: strings.TrimSpace(filter)})
}

// ChangePageSize sets the page size. An open table returns to page 1.
func (c *Console) ChangePageSize(ctx context.Context, s *Session, size int) (*browser.Page, error) {
	if size < 1 || size > c.maxSize {
		return nil, fmt.Errorf("%w: %d (maximum %d)", browser.ErrInvalidPageSize, size, c.maxSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == "" {
		s.pageSize = size
		return nil, nil
	}
	page, err := c.openPage(ctx, s, s.table, browser.Query{Page: 1, PageSize: size, Filter: s.filter})
	if err != nil {
		return nil, err
	}
	s.pageSize = size
	return page, nil
}

// NextPage moves to the following page. Past the last page it returns an
// empty page.
func (c *Console) NextPage(ctx context.Context, s *Session) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, ErrNoTable
	}
	return c.openPage(ctx, s, s.table, browser.Query{Page: s.page.Page + 1, PageSize: s.pageSize, Filter: s.filter})
}

// PrevPage moves to the preceding page. On page 1 it is a no-op.
func (c *Console) PrevPage(ctx context.Context, s *Session) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, ErrNoTable
	}
	if s.page.Page <= 1 {
		return s.page, nil
	}
	return c.openPage(ctx, s, s.table, browser.Query{Page: s.page.Page - 1, PageSize: s.pageSize, Filter: s.filter})
}

// Refresh re-reads the current page.
func (c *Console) Refresh(ctx context.Context, s *Session) (*browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, ErrNoTable
	}
	return c.openPage(ctx, s, s.table, browser.Query{Page: s.page.Page, PageSize: s.pageSize, Filter: s.filter})
}

// Resync brings a session up to date after another session changed its
// database: a database that is no longer registered is deselected, a
// dropped table is closed and the open page is re-read.
func (c *Console) Resync(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.database == "" {
		return
	}
	if _, err := c.reg.Select(s.database); err != nil {
		s.selectDatabase("")
		return
	}
	c.reloadAfterWrite(ctx, s)
}

// RunSQL executes sqlText against the active database as one transaction.
// The text is kept as the session's script buffer whatever the outcome.
func (c *Console) RunSQL(ctx context.Context, s *Session, sqlText string) (*QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.script = sqlText

	var result QueryResult
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		start := time.Now()
		results, err := gateway.Execute(ctx, db, sqlText)
		result.Elapsed = time.Since(start)
		result.Results = results
		return err
	})
	if err != nil {
		c.logger.Debug("sql failed", "database", s.database, "error", err)
		return nil, err
	}

	c.logger.Debug("sql executed", "database", s.database, "results", len(result.Results), "elapsed", result.Elapsed)
	c.onChange(Change{Session: s.ID, Kind: ChangeData, Database: s.database})
	c.reloadAfterWrite(ctx, s)
	return &result, nil
}

// LoadScript replaces the session's script buffer with the contents of r.
// The script is not executed.
func (c *Console) LoadScript(s *Session, r io.Reader) error {
	text, err := transfer.ReadScript(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = text
	return nil
}

// Script returns the session's script buffer as a download.
func (c *Console) Script(s *Session) Download {
	st := s.State()
	return Download{
		FileName:    transfer.ScriptFileName(st.Database),
		ContentType: ContentTypeSQL,
		Data:        []byte(st.Script),
	}
}

// ImportCSV appends the rows of a CSV document to the open table and
// reloads the current page.
func (c *Console) ImportCSV(ctx context.Context, s *Session, r io.Reader) (int, error) {
	doc, err := transfer.ParseCSV(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == "" {
		return 0, ErrNoTable
	}

	var n int
	err = c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		cols, err := browser.Columns(ctx, db, s.table)
		if err != nil {
			return err
		}
		n, err = transfer.ImportCSV(ctx, db, s.table, browser.ColumnNames(cols), doc)
		return err
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("csv imported", "database", s.database, "table", s.table, "rows", n)
	c.onChange(Change{Session: s.ID, Kind: ChangeData, Database: s.database, Table: s.table})
	c.reloadAfterWrite(ctx, s)
	return n, nil
}

// ExportCSV serializes the whole open table as CSV, ignoring the filter.
func (c *Console) ExportCSV(ctx context.Context, s *Session) (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == "" {
		return Download{}, ErrNoTable
	}

	var buf bytes.Buffer
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		return transfer.ExportCSV(ctx, db, s.table, &buf)
	})
	if err != nil {
		return Download{}, err
	}
	return Download{
		FileName:    transfer.CSVFileName(s.database, s.table),
		ContentType: ContentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}

// withHandle runs fn on the session's active database while holding the
// handle exclusively. The caller holds the session lock.
func (c *Console) withHandle(ctx context.Context, s *Session, fn func(ctx context.Context, h *registry.Handle, db *sql.DB) error) error {
	if s.database == "" {
		return ErrNoDatabase
	}
	h, err := c.reg.Select(s.database)
	if err != nil {
		// Replaced in single mode, or the registry was closed.
		s.selectDatabase("")
		return fmt.Errorf("%w: %w", ErrNoDatabase, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return h.Exclusive(func(db *sql.DB) error {
		return fn(ctx, h, db)
	})
}

// openPage reads a page and, on success, makes it the session's table,
// filter and snapshot. On failure the session is left unchanged. The
// caller holds the session lock.
func (c *Console) openPage(ctx context.Context, s *Session, table string, q browser.Query) (*browser.Page, error) {
	var page *browser.Page
	err := c.withHandle(ctx, s, func(ctx context.Context, _ *registry.Handle, db *sql.DB) error {
		var err error
		page, err = browser.Open(ctx, db, table, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.table = table
	s.filter = q.Filter
	s.page = page
	return page, nil
}

// reloadAfterWrite refreshes the snapshot after data may have changed.
// When the page no longer exists the last page is shown, or page 1 once
// nothing matches; when the table is gone it is closed.
func (c *Console) reloadAfterWrite(ctx context.Context, s *Session) {
	if s.page == nil {
		return
	}
	q := browser.Query{Page: s.page.Page, PageSize: s.pageSize, Filter: s.filter}
	page, err := c.openPage(ctx, s, s.table, q)
	if err != nil {
		if errors.Is(err, browser.ErrTableNotFound) {
			s.closeTable()
			return
		}
		c.logger.Warn("reload page failed", "table", s.table, "error", err)
		return
	}
	if last := page.TotalPages(); q.Page > last && q.Page > 1 {
		q.Page = max(last, 1)
		if _, err := c.openPage(ctx, s, s.table, q); err != nil {
			c.logger.Warn("reload page failed", "table", s.table, "error", err)
		}
	}
}
