// Package recording provides a backend that records instead of drawing.
//
// The [Recorder] implements backend.Backend without a device. Every peer
// call (validate, initialize, update, cleanup, apply, restore), every
// resource upload and every draw is captured as a [Command]. The recorder
// also tracks which atom is bound to which unit, so tests of the state and
// queue layers can assert on the effective GPU state without a GPU.
//
// # Architecture
//
// The package follows the Command pattern with three parts:
//
//   - Recorder: the backend that captures calls as commands
//   - Recording: an immutable command list plus its [ResourcePool]
//   - Playback: replays a Recording onto another backend
//
// # Basic Usage
//
//	rec := recording.NewRecorder()
//	ctx := state.NewContext(state.WithPeerProvider(rec))
//	_ = rec.Init()
//
//	// drive the context, queues and resource manager as usual
//
//	r := rec.FinishRecording()
//	fmt.Println(r.Count(recording.CmdApply), "state changes")
//
// # Failure Injection
//
// FailValidation, FailRealization and FailResource make selected atoms or
// resources fail, which exercises the error paths of callers.
//
// # Registration
//
// Importing the package registers the recorder under
// backend.BackendRecording:
//
//	import _ "github.com/gogpu/scenestate/recording"
//
//	b, err := backend.Open(backend.BackendRecording)
//
// # Thread Safety
//
// A Recorder is used from the goroutine that made its context current and
// is not safe for concurrent use. Recordings are immutable and may be read
// from several goroutines.
package recording
