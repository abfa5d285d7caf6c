// Package scoring computes per-category psychosocial exposure scores
// from questionnaire answers. The category catalog defines the scale
// and metadata of each risk category and can be hot-reloaded from disk.
package scoring

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// ─────────────────────────────────────────────
// Catalog model
// ─────────────────────────────────────────────

// CategoryDefinition describes one psychosocial risk category. An empty
// Thresholds block keeps the category on the default ladder.
type CategoryDefinition struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	ScaleMin    int        `yaml:"scale_min" json:"scale_min"`
	ScaleMax    int        `yaml:"scale_max" json:"scale_max"`
	Thresholds  Thresholds `yaml:"thresholds" json:"thresholds"`
}

// Valid reports whether the definition has a usable scale.
func (d CategoryDefinition) Valid() bool {
	return d.ID != "" && d.ScaleMax > d.ScaleMin
}

// Ladder returns the category's threshold ladder, falling back to the
// default when the catalog defines none.
func (d CategoryDefinition) Ladder() Thresholds {
	if d.Thresholds.IsZero() {
		return DefaultThresholds
	}
	return d.Thresholds
}

type catalogFile struct {
	Categories []CategoryDefinition `yaml:"categories"`
}

// Catalog is a thread-safe, reloadable set of category definitions.
type Catalog struct {
	mu        sync.RWMutex
	byID      map[string]CategoryDefinition
	order     []string
	path      string
	watcher   *fsnotify.Watcher
	logger    logging.Logger
	onReload  func()
	closeOnce sync.Once
	watchDone chan struct{}
}

// LoadCatalog reads category definitions from a YAML file.
func LoadCatalog(path string, logger logging.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Catalog{path: path, logger: logger.Named("catalog")}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCatalogFromDefinitions builds an in-memory catalog, used by tests
// and by callers that manage their own definition source.
func NewCatalogFromDefinitions(defs []CategoryDefinition) (*Catalog, error) {
	c := &Catalog{logger: logging.NewNopLogger()}
	if err := c.replace(defs); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigMissing, "category catalog unreadable")
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCatalogInvalid, "category catalog malformed")
	}
	return c.replace(file.Categories)
}

func (c *Catalog) replace(defs []CategoryDefinition) error {
	if len(defs) == 0 {
		return apperrors.New(apperrors.ErrCodeCatalogInvalid, "category catalog is empty")
	}
	byID := make(map[string]CategoryDefinition, len(defs))
	order := make([]string, 0, len(defs))
	for _, d := range defs {
		if !d.Valid() {
			return apperrors.Newf(apperrors.ErrCodeCatalogInvalid,
				"category %q has invalid scale [%d, %d]", d.ID, d.ScaleMin, d.ScaleMax)
		}
		if !d.Thresholds.IsZero() && !d.Thresholds.Valid() {
			return apperrors.Newf(apperrors.ErrCodeCatalogInvalid,
				"category %q has invalid thresholds %v/%v/%v",
				d.ID, d.Thresholds.Medio, d.Thresholds.Alto, d.Thresholds.Critico)
		}
		if _, dup := byID[d.ID]; dup {
			return apperrors.Newf(apperrors.ErrCodeCatalogInvalid, "duplicate category %q", d.ID)
		}
		byID[d.ID] = d
		order = append(order, d.ID)
	}
	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()
	return nil
}

// Get returns a category definition by ID.
func (c *Catalog) Get(id string) (CategoryDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// Categories returns all definitions in catalog file order.
func (c *Catalog) Categories() []CategoryDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CategoryDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the category count.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// ─────────────────────────────────────────────
// Hot reload
// ─────────────────────────────────────────────

// OnReload registers a callback invoked after a successful reload,
// typically to invalidate downstream caches.
func (c *Catalog) OnReload(fn func()) {
	c.mu.Lock()
	c.onReload = fn
	c.mu.Unlock()
}

// Watch starts watching the catalog file for changes. A failed reload
// keeps the previous definitions in effect.
func (c *Catalog) Watch() error {
	if c.path == "" {
		return apperrors.New(apperrors.ErrCodeConfigMissing, "catalog has no backing file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "create catalog watcher")
	}
	if err := watcher.Add(c.path); err != nil {
		watcher.Close()
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "watch catalog file")
	}
	c.watcher = watcher
	c.watchDone = make(chan struct{})

	go func() {
		defer close(c.watchDone)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.reload(); err != nil {
					c.logger.Warn("catalog reload failed, keeping previous definitions",
						logging.String("path", c.path), logging.Err(err))
					continue
				}
				c.logger.Info("catalog reloaded", logging.String("path", c.path),
					logging.Int("categories", c.Len()))
				c.mu.RLock()
				fn := c.onReload
				c.mu.RUnlock()
				if fn != nil {
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("catalog watcher error", logging.Err(err))
			}
		}
	}()
	return nil
}

// Close stops the file watcher if one is running.
func (c *Catalog) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.watcher != nil {
			err = c.watcher.Close()
			<-c.watchDone
		}
	})
	return err
}
