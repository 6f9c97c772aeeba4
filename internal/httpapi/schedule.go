package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/orrery-labs/inkframe/internal/confstore"
	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/schedule"
)

// handlePlaylistList writes every playlist document under schedules/
// wrapped with _id/_rev (spec.md §6 "GET /schedule/playlist/list").
func (s *Server) handlePlaylistList(w http.ResponseWriter, r *http.Request) {
	names, err := s.sup.ConfigManager.PlaylistNames()
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}

	playlists := make([]map[string]any, 0, len(names))
	for _, name := range names {
		obj := s.sup.ConfigManager.Schedule(name)
		content, rev, err := obj.Get()
		if err != nil {
			s.logger.Warn("skipping unreadable playlist", "name", name, "error", err)
			continue
		}
		playlists = append(playlists, withRevision(content, name, rev))
	}
	writeJSON(w, map[string]any{"playlists": playlists}, s.logger)
}

// handleTimerTaskList writes the single timer_tasks document wrapped
// with _id/_rev, as a one-element list (spec.md §6 "GET
// /schedule/timer/list — Timer task groups with _rev").
func (s *Server) handleTimerTaskList(w http.ResponseWriter, r *http.Request) {
	obj := s.sup.ConfigManager.Schedule("timer_tasks")
	content, rev, err := obj.Get()
	if err != nil {
		if errIsNotFound(err) {
			writeJSON(w, map[string]any{"task_groups": []any{}}, s.logger)
			return
		}
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, map[string]any{
		"task_groups": []map[string]any{withRevision(content, "timer_tasks", rev)},
	}, s.logger)
}

func errIsNotFound(err error) bool {
	return coreerr.Kind(err) == coreerr.NotFound
}

// renderedItem is one flattened occurrence in a /schedule/render
// response.
type renderedItem struct {
	ScheduleID string         `json:"schedule_id"`
	ItemID     string         `json:"item_id"`
	PluginName string         `json:"plugin_name"`
	Title      string         `json:"title"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Content    map[string]any `json:"content,omitempty"`
}

// handleScheduleRender computes, for each day in [start, start+days),
// which TimedSchedule the master schedule selects and flattens its
// items into absolute-timestamped occurrences (spec.md §6
// "GET /schedule/render?start=...&days=...").
func (s *Server) handleScheduleRender(w http.ResponseWriter, r *http.Request) {
	start := s.sup.Clock().Now()
	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errorResponse(w, s.logger, http.StatusBadRequest, "invalid start: must be ISO-8601")
			return
		}
		start = parsed
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			errorResponse(w, s.logger, http.StatusBadRequest, "invalid days: must be a positive integer")
			return
		}
		days = parsed
	}

	masterContent, _, err := s.sup.ConfigManager.MasterSchedule().Get()
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	var master schedule.MasterSchedule
	if err := confstore.Decode(masterContent, &master); err != nil {
		writeErr(w, s.logger, err)
		return
	}

	items := []renderedItem{}
	schedules := map[string]any{}     // schedule_id -> raw decoded document, one entry per distinct name
	timedByName := map[string]schedule.TimedSchedule{} // decode cache, keyed the same way

	y, m, d := start.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	for i := 0; i < days; i++ {
		day := dayStart.AddDate(0, 0, i)
		name := master.Evaluate(day)

		timed, cached := timedByName[name]
		if !cached {
			content, _, err := s.sup.ConfigManager.Schedule(name).Get()
			if err != nil {
				s.logger.Warn("schedule render: skipping unreadable schedule", "name", name, "error", err)
				continue
			}
			if err := confstore.Decode(content, &timed); err != nil {
				s.logger.Warn("schedule render: skipping undecodable schedule", "name", name, "error", err)
				continue
			}
			schedules[name] = content
			timedByName[name] = timed
		}

		for _, it := range timed.SortedItems() {
			items = append(items, renderedItem{
				ScheduleID: name,
				ItemID:     it.ID,
				PluginName: it.PluginName,
				Title:      it.Title,
				Start:      it.Start(day).Format(time.RFC3339),
				End:        it.End(day).Format(time.RFC3339),
				Content:    it.Content,
			})
		}
	}

	writeJSON(w, map[string]any{
		"items":     items,
		"schedules": schedules,
	}, s.logger)
}
