// Package cache is the read-through response cache and mutation gateway
// in front of the liftsync server.
//
// Layer.Read serves unexpired entries without touching the network and
// stores fresh 2xx bodies for five minutes. While offline it falls back
// to a caller-supplied value or fails with ErrOfflineNoCache.
//
// Layer.Mutate sends writes directly when online. Offline writes with a
// QueueTarget are handed to the action queue and acknowledged as queued;
// offline writes without one fail with ErrOfflineMutation.
//
// Expired entries are swept on a small random fraction of cache writes
// rather than eagerly.
package cache
