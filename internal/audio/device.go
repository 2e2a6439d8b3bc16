package audio

import (
	"strconv"
	"strings"
)

// DeviceInfo is the subset of a host audio device used for selection.
type DeviceInfo struct {
	Index    int
	Name     string
	Channels int // channels in the wanted direction
}

// ResolveDevice maps a configured device string to a device index.
// "" and "default" select the system default (ok=false); a number selects
// that index; anything else is matched as a case-insensitive substring of a
// device name among devices with channels. Unknown names fall back to the
// default.
func ResolveDevice(spec string, devices []DeviceInfo) (index int, ok bool) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" || s == "default" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		for _, d := range devices {
			if d.Index == n {
				return n, true
			}
		}
		return 0, false
	}
	for _, d := range devices {
		if d.Channels > 0 && strings.Contains(strings.ToLower(d.Name), s) {
			return d.Index, true
		}
	}
	return 0, false
}
