// Package malgo implements audio.Backend and audio.Directory on top of
// miniaudio through github.com/gen2brain/malgo.
//
// Building with the noaudio tag, or without cgo, replaces the backend with
// a stub whose constructor returns ErrAudioDisabled.
package malgo

import "errors"

// Name of the backend as reported by Backend.Name.
const Name = "malgo"

// ErrAudioDisabled is returned by New when the binary was built without
// miniaudio support.
var ErrAudioDisabled = errors.New("malgo audio support not compiled in")
