// Package portaudio implements audio.Backend and audio.Directory with
// github.com/gordonklaus/portaudio. Device ids are PortAudio device
// indexes.
package portaudio

import "errors"

// Name of the backend as reported by Backend.Name.
const Name = "portaudio"

// ErrAudioDisabled is returned by New when the binary was built without
// PortAudio support.
var ErrAudioDisabled = errors.New("portaudio support not compiled in")
