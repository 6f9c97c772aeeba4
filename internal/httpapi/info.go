package httpapi

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/orrery-labs/inkframe/internal/buildinfo"
)

// handleInfo serves /api/info: build metadata plus a human-readable
// "started X ago" uptime, wiring the humanize dependency the teacher's
// go.mod already carries indirectly but never imports directly.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.RuntimeInfo()
	out := map[string]any{
		"version":      info["version"],
		"git_commit":   info["git_commit"],
		"git_branch":   info["git_branch"],
		"build_time":   info["build_time"],
		"go_version":   info["go_version"],
		"os":           info["os"],
		"arch":         info["arch"],
		"uptime":       info["uptime"],
		"started":      humanize.Time(s.startedAt),
		"storage_root": s.sup.StorageRoot(),
	}
	writeJSON(w, out, s.logger)
}
