package confstore

import "encoding/json"

// Decode round-trips content (as returned by ConfigurationObject.Get)
// through JSON into target, the same JSON-round-trip idiom
// cloneContent already uses for deep-copying. Schedule documents are
// untyped map[string]any at the storage layer and typed
// (schedule.MasterSchedule, schedule.Playlist, ...) everywhere else;
// this is the seam between the two.
func Decode(content map[string]any, target any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
