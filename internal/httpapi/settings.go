package httpapi

import "net/http"

// handleSettingsGet/Put serve /settings/{name} (spec.md §6 "GET
// Returns document with _id and _rev fields added"; "PUT Body must
// include _id == <name>-settings and _rev"). The document id on the
// wire is "<name>-settings", matching the storage filename convention
// confstore.Manager.Settings already uses.
func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	getDocument(w, s.logger, s.sup.ConfigManager.Settings(name), name+"-settings")
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	putDocument(w, s.logger, r, s.sup.ConfigManager.Settings(name), name+"-settings")
}

// handleSchemaGet serves /schemas/{name} (spec.md §6 "Static JSON
// schema file").
func (s *Server) handleSchemaGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	getSchema(w, s.logger, s.sup.ConfigManager.Schema(name))
}
