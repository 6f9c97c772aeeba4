package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/orrery-labs/inkframe/internal/confstore"
)

// withRevision returns a copy of content with _id and _rev set, the
// wire shape every settings/playlist/task document carries (spec.md
// §6 "Document conventions").
func withRevision(content map[string]any, id, rev string) map[string]any {
	out := make(map[string]any, len(content)+2)
	for k, v := range content {
		out[k] = v
	}
	out["_id"] = id
	out["_rev"] = rev
	return out
}

// getDocument writes obj's current content wrapped with _id/id and
// _rev, or a mapped error (404 if the document has never been
// created).
func getDocument(w http.ResponseWriter, logger *slog.Logger, obj *confstore.ConfigurationObject, id string) {
	content, rev, err := obj.Get()
	if err != nil {
		writeErr(w, logger, err)
		return
	}
	writeJSON(w, withRevision(content, id, rev), logger)
}

// putDocument validates the request body's _id against id, strips
// _id/_rev, and saves through obj using the body's _rev as the
// expected hash. On success it writes the new document with its
// updated _rev (spec.md §6 "PUT ... 400 on ID mismatch; 409 on
// revision mismatch; 200 with new _rev on success").
func putDocument(w http.ResponseWriter, logger *slog.Logger, r *http.Request, obj *confstore.ConfigurationObject, id string) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorResponse(w, logger, http.StatusBadRequest, "invalid request body")
		return
	}

	bodyID, _ := body["_id"].(string)
	if bodyID != id {
		errorResponse(w, logger, http.StatusBadRequest, fmt.Sprintf("_id %q does not match resource %q", bodyID, id))
		return
	}
	expectedRev, _ := body["_rev"].(string)

	content := make(map[string]any, len(body))
	for k, v := range body {
		if k == "_id" || k == "_rev" {
			continue
		}
		content[k] = v
	}

	newRev, err := obj.Save(expectedRev, content)
	if err != nil {
		writeErr(w, logger, err)
		return
	}
	writeJSON(w, withRevision(content, id, newRev), logger)
}

// getSchema writes a read-only schema template's raw content (spec.md
// §6 "/schemas/{...} GET — Static JSON schema file"), with no
// _id/_rev wrapping since schema templates are not versioned
// documents.
func getSchema(w http.ResponseWriter, logger *slog.Logger, obj *confstore.ConfigurationObject) {
	content, _, err := obj.Get()
	if err != nil {
		writeErr(w, logger, err)
		return
	}
	writeJSON(w, content, logger)
}
