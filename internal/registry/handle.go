package registry

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	// pure-Go SQLite driver, registered as "sqlite".
	"modernc.org/sqlite"
)

// imageHeader is the magic string every SQLite database file starts with.
var imageHeader = []byte("SQLite format 3\x00")

const (
	// headerSize is the length of the database file header.
	headerSize = 100
	// schemaCookieOffset locates the 4-byte schema cookie in the header.
	schemaCookieOffset = 40
)

// Handle is one in-memory SQLite database.
//
// The database lives inside a single driver connection, so the pool is pinned
// to exactly one connection that is never recycled.
type Handle struct {
	name    string
	db      *sql.DB
	created time.Time

	// mu serializes console operations on this database.
	mu sync.Mutex
}

// Name returns the registered name.
func (h *Handle) Name() string { return h.name }

// DB returns the underlying connection pool.
func (h *Handle) DB() *sql.DB { return h.db }

// CreatedAt returns when the handle was registered.
func (h *Handle) CreatedAt() time.Time { return h.created }

// Exclusive runs fn while holding the handle lock, so that multi-step
// operations (count then fetch, snapshot then drop) observe one state.
func (h *Handle) Exclusive(fn func(db *sql.DB) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.db)
}

// Export serializes the database into a binary SQLite image.
func (h *Handle) Export(ctx context.Context) ([]byte, error) {
	conn, err := h.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var image []byte
	err = conn.Raw(func(driverConn any) error {
		s, ok := driverConn.(interface{ Serialize() ([]byte, error) })
		if !ok {
			return fmt.Errorf("driver connection %T cannot serialize", driverConn)
		}
		image, err = s.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", h.name, err)
	}
	return image, nil
}

func newHandle(ctx context.Context, name string, foreignKeys bool) (*Handle, error) {
	dsn := ":memory:?_time_format=sqlite"
	if foreignKeys {
		dsn += "&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &Handle{
		name:    name,
		db:      db,
		created: time.Now().UTC(),
	}, nil
}

// initialize forces page 1 to exist so that a fresh database exports as a
// valid one-page image instead of an empty buffer.
func (h *Handle) initialize(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, "PRAGMA user_version = 0"); err != nil {
		return fmt.Errorf("initialize %s: %w", h.name, err)
	}

	var pages int64
	if err := h.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return fmt.Errorf("initialize %s: %w", h.name, err)
	}
	if pages > 0 {
		return nil
	}

	_, err := h.db.ExecContext(ctx, `CREATE TABLE "__dbbrowser_init" (x); DROP TABLE "__dbbrowser_init"; VACUUM`)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", h.name, err)
	}
	return nil
}

// restorer is implemented by modernc driver connections.
type restorer interface {
	NewRestore(srcURI string) (*sqlite.Backup, error)
}

// restore replaces the database content with image and checks that the
// engine can read its schema. The image is staged in a temporary file and
// copied in with the online backup API.
func (h *Handle) restore(ctx context.Context, image []byte) error {
	path, cleanup, err := stageImage(image)
	if err != nil {
		return err
	}
	defer cleanup()

	conn, err := h.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// An in-memory destination only accepts pages of its own size.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA page_size = %d", imagePageSize(image))); err != nil {
		return fmt.Errorf("set page size: %w", err)
	}

	err = conn.Raw(func(driverConn any) error {
		r, ok := driverConn.(restorer)
		if !ok {
			return fmt.Errorf("driver connection %T cannot restore", driverConn)
		}
		bck, err := r.NewRestore(path)
		if err != nil {
			return err
		}
		for more := true; more; {
			if more, err = bck.Step(-1); err != nil {
				_ = bck.Finish()
				return err
			}
		}
		return bck.Finish()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedImage, err)
	}

	var objects int64
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&objects); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedImage, err)
	}

	// The backup bumps the schema cookie; put back the image's value so an
	// unmodified database exports the bytes it was loaded from.
	cookie := binary.BigEndian.Uint32(image[schemaCookieOffset:])
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA schema_version = %d", cookie)); err != nil {
		return fmt.Errorf("restore schema cookie: %w", err)
	}
	return nil
}

// stageImage writes image to a temporary file and returns its path and a
// function removing it.
func stageImage(image []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "dbbrowser-*.sqlite")
	if err != nil {
		return "", nil, fmt.Errorf("failed to stage image: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to stage image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to stage image: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db.Close()
}

func hasImageHeader(image []byte) bool {
	return bytes.HasPrefix(image, imageHeader)
}

// checkImage validates the fixed 100-byte file header before the image is
// handed to the engine. SQLite treats short or truncated images as empty
// databases instead of failing, so those are rejected here.
func checkImage(image []byte) error {
	if !hasImageHeader(image) {
		return fmt.Errorf("%w: missing SQLite header", ErrMalformedImage)
	}
	if len(image) < headerSize {
		return fmt.Errorf("%w: image is %d bytes, shorter than the header", ErrMalformedImage, len(image))
	}

	pageSize := imagePageSize(image)
	if pageSize < 512 || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("%w: invalid page size %d", ErrMalformedImage, pageSize)
	}
	if len(image)%pageSize != 0 {
		return fmt.Errorf("%w: image size %d is not a multiple of page size %d", ErrMalformedImage, len(image), pageSize)
	}
	return nil
}

// imagePageSize decodes the page size field of a header; the value 1
// stands for 65536.
func imagePageSize(image []byte) int {
	pageSize := int(binary.BigEndian.Uint16(image[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	return pageSize
}
