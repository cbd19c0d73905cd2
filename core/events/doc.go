// Package events defines the typed room event contract consumed by a live
// session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - track.*
//   - data.*
//
// track events
//
//   - TrackSubscribed (track.subscribed): a remote track became readable. Video
//     subscriptions carry the [FrameStream] to consume.
//   - TrackUnsubscribed (track.unsubscribed): the remote track went away.
//   - TrackMuted (track.muted): the publisher muted the track.
//   - TrackUnmuted (track.unmuted): the publisher unmuted the track.
//
// Track-plane events are authoritative for camera truth once a video track is
// subscribed.
//
// data events
//
//   - DataReceived (data.received): an out-of-band data packet. Packets on the
//     control topic may decode to a [ControlMessage]; everything else is
//     ignored by receivers.
package events
