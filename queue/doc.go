// Package queue orders render atoms before they are drawn.
//
// A frame is built by clearing a [RenderQueue], adding every visible
// [RenderAtom] and [InfluenceAtom], then flushing the queue into a
// [Renderer]. Queues may reorder atoms once per accumulation cycle:
//
//   - [Basic] keeps submission order.
//   - [DepthSorting] orders by distance to the view, front to back or back
//     to front.
//   - [StateSorting] groups atoms sharing an appearance and orders
//     distinct appearances by a priority of state categories, so that the
//     renderer switches as little state as possible.
//
// Queues are not safe for concurrent use.
package queue
