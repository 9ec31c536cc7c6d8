// Package model defines the records shared by the local store, the action
// queue, and the response cache.
//
// The package is a leaf: it imports nothing from the rest of liftsync so
// the store, the sync engine and the cache layer can all depend on it
// without cycles.
//
// Entity kinds double as the discriminant of queued payloads. A Payload
// carries its kind next to the serialized body so the sync engine can
// route it without decoding the body, and a consumer that needs the
// concrete request type can decode it with Payload.Decode.
package model
