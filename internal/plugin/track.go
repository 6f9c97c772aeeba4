package plugin

import "github.com/orrery-labs/inkframe/internal/schedule"

// TrackInfo extracts the plugin id and content payload common to all
// three track shapes a Plugin's Start/Stop/Receive may be called with
// (schedule.PluginSchedule, schedule.PlaylistSchedule,
// schedule.TimerTaskItem), so a plugin implementation does not need to
// repeat this type switch. ok is false for any other track type.
func TrackInfo(track any) (pluginName string, content map[string]any, ok bool) {
	switch t := track.(type) {
	case schedule.PluginSchedule:
		return t.PluginName, t.Content, true
	case schedule.PlaylistSchedule:
		return t.PluginName, t.Content, true
	case schedule.TimerTaskItem:
		return t.Task.PluginName, t.Task.Content, true
	default:
		return "", nil, false
	}
}
