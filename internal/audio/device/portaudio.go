// Package device binds audio sources and players to host sound devices.
package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/lexiqai/voice-interpreter/internal/audio"
)

var (
	refs   int
	refsMu sync.Mutex
)

// Initialize initializes the host audio system. Calls are reference counted
// and must be paired with Terminate.
func Initialize() error {
	refsMu.Lock()
	defer refsMu.Unlock()
	if refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
	}
	refs++
	return nil
}

// Terminate releases the host audio system once the last user is done.
func Terminate() {
	refsMu.Lock()
	defer refsMu.Unlock()
	if refs == 0 {
		return
	}
	refs--
	if refs == 0 {
		_ = portaudio.Terminate()
	}
}

// List returns host devices with their channel counts in the given direction.
func List(output bool) ([]*portaudio.DeviceInfo, []audio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list devices: %w", err)
	}
	infos := make([]audio.DeviceInfo, len(devices))
	for i, d := range devices {
		ch := d.MaxInputChannels
		if output {
			ch = d.MaxOutputChannels
		}
		infos[i] = audio.DeviceInfo{Index: i, Name: d.Name, Channels: ch}
	}
	return devices, infos, nil
}
