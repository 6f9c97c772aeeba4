package httpapi

import "net/http"

// datasourceInfo is the descriptor spec.md §6 calls for ("Array of
// data-source descriptors").
type datasourceInfo struct {
	ID string `json:"id"`
}

// handleDataSourceList writes every registered data source id
// (spec.md §6 "GET /datasources/list").
func (s *Server) handleDataSourceList(w http.ResponseWriter, r *http.Request) {
	ids := s.sup.DataSources.IDs()
	out := make([]datasourceInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, datasourceInfo{ID: id})
	}
	writeJSON(w, map[string]any{"datasources": out}, s.logger)
}

// handleDataSourceSettingsGet/Put serve /datasources/{id}/settings,
// the same document shape as /settings/* (spec.md §6 "As above").
func (s *Server) handleDataSourceSettingsGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	getDocument(w, s.logger, s.sup.ConfigManager.DataSourceSettings(id), id)
}

func (s *Server) handleDataSourceSettingsPut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	putDocument(w, s.logger, r, s.sup.ConfigManager.DataSourceSettings(id), id)
}
