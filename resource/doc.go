// Package resource tracks GPU-resident objects and synchronizes their
// backend representation once per frame.
//
// A [Resource] is any object with backend memory: a [Buffer], a [Texture]
// or a [Shader]. Edits only mark a resource dirty. What happens next
// depends on its [UpdatePolicy]:
//
//   - [OnDemand]: the renderer realizes pending edits right before the
//     resource is used ([DefaultManager.Prepare]).
//   - [Manual]: edits wait for an explicit [Manager.Update] request.
//
// Requests are queued on a [Manager] and executed by [Manager.Manage],
// which the frame driver calls once per frame with a backend [Renderer].
// A later request for the same resource replaces the earlier pending one,
// so an update followed by a cleanup runs only the cleanup.
//
// Resources that become unreachable are reported to every live manager
// and their backend memory is released on the next Manage call.
//
// Failures are statuses, not errors: a resource whose backend update
// failed reports [StatusError] until a later update succeeds, and one the
// backend cannot represent reports [StatusUnsupported] forever.
package resource
