// Package registry holds the named in-memory SQLite databases served by the
// console. A registry runs in one of two modes: multi keeps any number of
// databases side by side, single keeps at most one and replaces it whenever
// another database is created or loaded.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Mode selects how many databases a registry keeps.
type Mode string

// Registry modes.
const (
	ModeMulti  Mode = "multi"
	ModeSingle Mode = "single"
)

// maxNameLength bounds database names; names end up in download file names.
const maxNameLength = 255

// Sentinel errors returned by registry operations.
var (
	ErrExists         = errors.New("database already registered")
	ErrNotFound       = errors.New("database not found")
	ErrMalformedImage = errors.New("not a valid SQLite database image")
	ErrCapacity       = errors.New("database limit reached")
	ErrInvalidName    = errors.New("invalid database name")
)

// Config configures a Registry.
type Config struct {
	// Mode is ModeMulti (default) or ModeSingle.
	Mode Mode
	// MaxDatabases bounds a multi registry. Zero means unbounded.
	MaxDatabases int
	// ForeignKeys enables foreign key enforcement on every handle.
	ForeignKeys bool
	Logger      *slog.Logger
}

// Registry maps database names to their in-memory handles.
type Registry struct {
	mu sync.RWMutex

	// byName maps database names to handles: "sales.sqlite" → *Handle
	byName map[string]*Handle

	mode        Mode
	max         int
	foreignKeys bool
	logger      *slog.Logger
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeMulti
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		byName:      make(map[string]*Handle),
		mode:        mode,
		max:         cfg.MaxDatabases,
		foreignKeys: cfg.ForeignKeys,
		logger:      logger,
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMulti:
		return ModeMulti, nil
	case ModeSingle:
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("unknown registry mode %q (want single or multi)", s)
	}
}

// Mode reports the registry mode.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Create registers a new, schema-empty database.
func (r *Registry) Create(ctx context.Context, name string) (*Handle, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if err := r.checkAvailable(name); err != nil {
		return nil, err
	}

	h, err := newHandle(ctx, name, r.foreignKeys)
	if err != nil {
		return nil, err
	}
	if err := h.initialize(ctx); err != nil {
		_ = h.close()
		return nil, err
	}

	if err := r.register(h); err != nil {
		_ = h.close()
		return nil, err
	}
	r.logger.Info("database created", "name", name)
	return h, nil
}

// Load registers a database deserialized from a binary SQLite image.
// An empty image yields an empty database, mirroring how SQLite treats a
// zero-length file.
func (r *Registry) Load(ctx context.Context, name string, image []byte) (*Handle, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if len(image) > 0 {
		if err := checkImage(image); err != nil {
			return nil, err
		}
	}
	if err := r.checkAvailable(name); err != nil {
		return nil, err
	}

	h, err := newHandle(ctx, name, r.foreignKeys)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		err = h.initialize(ctx)
	} else {
		err = h.restore(ctx, image)
	}
	if err != nil {
		_ = h.close()
		return nil, err
	}

	if err := r.register(h); err != nil {
		_ = h.close()
		return nil, err
	}
	r.logger.Info("database loaded", "name", name, "bytes", len(image))
	return h, nil
}

// Export serializes the current state of a handle.
func (r *Registry) Export(ctx context.Context, h *Handle) ([]byte, error) {
	return h.Export(ctx)
}

// Select returns the handle registered under name.
func (r *Registry) Select(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return h, nil
}

// List returns all registered handles sorted by name.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Handle, 0, len(r.byName))
	for _, h := range r.byName {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].name < handles[j].name
	})
	return handles
}

// Count returns the number of registered databases.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Close closes every handle. The registry is empty afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, h := range r.byName {
		if err := h.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.byName, name)
	}
	return errors.Join(errs...)
}

// checkAvailable performs the early, lock-scoped duplicate and capacity
// checks so that callers fail before an image is deserialized.
func (r *Registry) checkAvailable(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.mode == ModeSingle {
		return nil
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if r.max > 0 && len(r.byName) >= r.max {
		return fmt.Errorf("%w (%d)", ErrCapacity, r.max)
	}
	return nil
}

func (r *Registry) register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == ModeSingle {
		for name, old := range r.byName {
			delete(r.byName, name)
			if err := old.close(); err != nil {
				r.logger.Warn("failed to close replaced database", "name", name, "error", err)
			}
			r.logger.Debug("database replaced", "old", name, "new", h.name)
		}
		r.byName[h.name] = h
		return nil
	}

	// Re-check under the write lock; another request may have won the race.
	if _, ok := r.byName[h.name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, h.name)
	}
	if r.max > 0 && len(r.byName) >= r.max {
		return fmt.Errorf("%w (%d)", ErrCapacity, r.max)
	}
	r.byName[h.name] = h
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > maxNameLength:
		return "", fmt.Errorf("%w: name longer than %d bytes", ErrInvalidName, maxNameLength)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return name, nil
}
