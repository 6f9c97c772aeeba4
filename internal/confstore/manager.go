package confstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// Manager is the process-singleton factory described in spec.md §4.2:
// it produces sub-managers for settings, plugin state, data-source
// state, schedules, and static assets, and maintains a
// moniker->ConfigurationObject registry so every caller shares one
// optimistic-concurrency view per document. It is grounded on the
// teacher's internal/checkpoint.Store, generalized from a single
// sqlite-backed table to an arbitrary moniker->path mapping over the
// filesystem layout spec.md §6 specifies.
type Manager struct {
	mu           sync.Mutex
	storageRoot  string
	templateRoot string // read-only template tree recopied by HardReset; may be empty
	registry     map[string]*ConfigurationObject
	logger       *slog.Logger
}

// NewManager creates a Manager rooted at storageRoot. templateRoot, if
// non-empty, is the read-only template tree HardReset recopies from.
func NewManager(storageRoot, templateRoot string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		storageRoot:  storageRoot,
		templateRoot: templateRoot,
		registry:     make(map[string]*ConfigurationObject),
		logger:       logger,
	}
}

// object returns the registered ConfigurationObject for moniker,
// creating it (backed by storageRoot/relPath) on first use.
func (m *Manager) object(moniker, relPath string) *ConfigurationObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.registry[moniker]; ok {
		return obj
	}
	path := filepath.Join(m.storageRoot, relPath)
	obj := New(moniker, fsLoader(path), fsSaver(path))
	m.registry[moniker] = obj
	return obj
}

// readOnlyObject is like object but its Saver always fails — used for
// the schemas/ sub-manager (spec.md §5 "schema files are read-only
// after init").
func (m *Manager) readOnlyObject(moniker, relPath string) *ConfigurationObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.registry[moniker]; ok {
		return obj
	}
	path := filepath.Join(m.storageRoot, relPath)
	obj := New(moniker, fsSchemaLoader(path), func(map[string]any) error {
		return fmt.Errorf("%w: %s is a read-only schema", coreerr.InvalidInput, moniker)
	})
	m.registry[moniker] = obj
	return obj
}

// Settings returns the ConfigurationObject for the named settings
// family ("system", "display", "theme", ...), backed by
// settings/<name>-settings.json.
func (m *Manager) Settings(name string) *ConfigurationObject {
	return m.object("settings:"+name, filepath.Join("settings", name+"-settings.json"))
}

// PluginSettings returns the ConfigurationObject for a plugin's
// persisted settings, backed by plugins/<id>/settings.json.
func (m *Manager) PluginSettings(id string) *ConfigurationObject {
	return m.object("plugins:"+id+":settings", filepath.Join("plugins", id, "settings.json"))
}

// PluginState returns the ConfigurationObject for a plugin's
// persisted state, backed by plugins/<id>/state.json.
func (m *Manager) PluginState(id string) *ConfigurationObject {
	return m.object("plugins:"+id+":state", filepath.Join("plugins", id, "state.json"))
}

// DataSourceSettings returns the ConfigurationObject for a data
// source's persisted settings, backed by datasources/<id>/settings.json.
func (m *Manager) DataSourceSettings(id string) *ConfigurationObject {
	return m.object("datasources:"+id+":settings", filepath.Join("datasources", id, "settings.json"))
}

// Schedule returns the ConfigurationObject for a named schedule
// document, backed by schedules/<name>.json.
func (m *Manager) Schedule(name string) *ConfigurationObject {
	return m.object("schedules:"+name, filepath.Join("schedules", name+".json"))
}

// MasterSchedule is a convenience for Schedule("master_schedule").
func (m *Manager) MasterSchedule() *ConfigurationObject {
	return m.Schedule("master_schedule")
}

// Schema returns the read-only ConfigurationObject for a JSON schema
// template, backed by schemas/<name>.json.
func (m *Manager) Schema(name string) *ConfigurationObject {
	return m.readOnlyObject("schemas:"+name, filepath.Join("schemas", name+".json"))
}

// PlaylistNames lists the basenames (without .json) of every schedule
// document under schedules/ except master_schedule and timer_tasks,
// which are reserved names for the other two schedule document kinds
// (spec.md §6 "GET /schedule/playlist/list").
func (m *Manager) PlaylistNames() ([]string, error) {
	names, err := m.listSchemaNamesIn("schedules")
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if n == "master_schedule" || n == "timer_tasks" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// listSchemaNamesIn is listSchemaNames generalized to an arbitrary
// storage-root subdirectory, so PlaylistNames can reuse it for
// schedules/ instead of schemas/.
func (m *Manager) listSchemaNamesIn(sub string) ([]string, error) {
	dir := filepath.Join(m.storageRoot, sub)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", coreerr.Internal, sub, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(".json")])
	}
	return names, nil
}

// HardReset clears the storage tree (except the read-only schemas/),
// recopies the read-only template tree (if configured), and
// materializes default settings derived from each schema's "default"
// block plus empty default settings for each given plugin/data-source
// id whose settings document does not exist yet (spec.md §4.2). The
// registry lock is held while the tree is cleared and recopied.
func (m *Manager) HardReset(pluginIDs, dataSourceIDs []string) error {
	err := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		for _, sub := range []string{"settings", "plugins", "datasources", "schedules"} {
			if err := os.RemoveAll(filepath.Join(m.storageRoot, sub)); err != nil {
				return fmt.Errorf("%w: clear %s: %v", coreerr.Internal, sub, err)
			}
		}
		m.registry = make(map[string]*ConfigurationObject)

		if m.templateRoot != "" {
			if err := copyTree(m.templateRoot, m.storageRoot); err != nil {
				return fmt.Errorf("%w: recopy template tree: %v", coreerr.Internal, err)
			}
		}
		return nil
	}()
	if err != nil {
		return err
	}

	schemaNames, err := m.listSchemaNames()
	if err != nil {
		return err
	}
	for _, name := range schemaNames {
		if err := m.materializeDefaultSettings(name); err != nil {
			return err
		}
	}

	for _, id := range pluginIDs {
		if err := m.ensureDefault(m.PluginSettings(id)); err != nil {
			return err
		}
	}
	for _, id := range dataSourceIDs {
		if err := m.ensureDefault(m.DataSourceSettings(id)); err != nil {
			return err
		}
	}
	return nil
}

// listSchemaNames returns the base names (without .json) of every
// file under schemas/ after the template recopy.
func (m *Manager) listSchemaNames() ([]string, error) {
	return m.listSchemaNamesIn("schemas")
}

// materializeDefaultSettings writes settings/<name>-settings.json from
// the schema's "default" block if the settings document does not
// already exist.
func (m *Manager) materializeDefaultSettings(name string) error {
	schemaPath := filepath.Join(m.storageRoot, "schemas", name+".json")
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("%w: read schema %s: %v", coreerr.Internal, name, err)
	}
	var schema struct {
		Default map[string]any `json:"default"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("%w: parse schema %s: %v", coreerr.Internal, name, err)
	}
	if schema.Default == nil {
		return nil
	}

	obj := m.Settings(name)
	if _, _, err := obj.Get(); err == nil {
		return nil // already materialized
	} else if !isNotFoundErr(err) {
		return err
	}
	if _, err := obj.Save("", schema.Default); err != nil {
		return fmt.Errorf("%w: materialize defaults for %s: %v", coreerr.Internal, name, err)
	}
	return nil
}

// ensureDefault writes an empty document for obj if none exists yet.
func (m *Manager) ensureDefault(obj *ConfigurationObject) error {
	if _, _, err := obj.Get(); err == nil {
		return nil
	} else if !isNotFoundErr(err) {
		return err
	}
	_, err := obj.Save("", map[string]any{})
	return err
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, coreerr.NotFound)
}

// copyTree copies every regular file under src to the matching
// relative path under dst, creating directories as needed.
func copyTree(src, dst string) error {
	return walk(src, src, dst)
}

func walk(root, src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		relPath, err := filepath.Rel(root, srcPath)
		if err != nil {
			return err
		}
		dstPath := filepath.Join(dst, relPath)
		if e.IsDir() {
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return err
			}
			if err := walk(root, srcPath, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	info, err := os.Stat(src)
	var mode fs.FileMode = 0o644
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(dst, data, mode)
}
