// Package stream exposes the live observation feed over WebSocket and
// Server-Sent Events.
//
// Each connection registers one broadcast.QueueObserver for its lifetime and
// drains it from a dedicated writer loop, so a slow client only ever loses
// its own updates. The connection is deregistered as soon as either side
// goes away.
package stream
