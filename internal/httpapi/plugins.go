package httpapi

import (
	"net/http"

	"github.com/orrery-labs/inkframe/internal/plugin"
)

// pluginInfo is the descriptor spec.md §6 calls for ("Array of plugin
// info descriptors"). Plugins are registered by id only (spec.md
// §4.7's {id, name} pair collapses to one string at the registry
// level), so Name mirrors ID.
type pluginInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handlePluginList writes every registered plugin id (spec.md §6 "GET
// /plugins/list").
func (s *Server) handlePluginList(w http.ResponseWriter, r *http.Request) {
	ids := plugin.IDs()
	out := make([]pluginInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, pluginInfo{ID: id, Name: id})
	}
	writeJSON(w, map[string]any{"plugins": out}, s.logger)
}

// handlePluginSettingsGet/Put serve /plugins/{id}/settings, the same
// document shape as /settings/* (spec.md §6 "Same shape as
// /settings/*").
func (s *Server) handlePluginSettingsGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	getDocument(w, s.logger, s.sup.ConfigManager.PluginSettings(id), id)
}

func (s *Server) handlePluginSettingsPut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	putDocument(w, s.logger, r, s.sup.ConfigManager.PluginSettings(id), id)
}
