package model

import "encoding/json"

// Settings is the free-form JSON blob attached to users and tokens.
type Settings map[string]any

// Get returns the raw value for key, or nil when unset.
func (s Settings) Get(key string) any {
	if s == nil {
		return nil
	}
	return s[key]
}

// Set stores value under key, allocating the map on first use.
func (s *Settings) Set(key string, value any) {
	if *s == nil {
		*s = Settings{}
	}
	(*s)[key] = value
}

// Clone deep-copies the settings through a JSON round trip so that a
// refreshed token never shares blob state with the token it replaces.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return Settings{}
	}
	var out Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}
	}
	return out
}

// LastPosition is the single contractually relied-upon settings key: where
// the user left off in the form wizard.
type LastPosition struct {
	Step string `json:"step"`
	Page int    `json:"page"`
}

const lastPositionKey = "last_position"

// LastPosition decodes settings["last_position"], reporting whether a
// well-formed position was stored.
func (s Settings) LastPosition() (LastPosition, bool) {
	raw := s.Get(lastPositionKey)
	if raw == nil {
		return LastPosition{}, false
	}

	// The blob travels through JSON, so the stored value is normally a
	// map[string]any with float64 numbers.
	m, ok := raw.(map[string]any)
	if !ok {
		return LastPosition{}, false
	}

	step, ok := m["step"].(string)
	if !ok {
		return LastPosition{}, false
	}

	pos := LastPosition{Step: step, Page: 1}
	switch page := m["page"].(type) {
	case float64:
		pos.Page = int(page)
	case int:
		pos.Page = page
	}
	return pos, true
}

// SetLastPosition stores the position under the contract key.
func (s *Settings) SetLastPosition(step string, page int) {
	s.Set(lastPositionKey, map[string]any{
		"step": step,
		"page": float64(page),
	})
}
