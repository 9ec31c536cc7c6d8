package cache

import "errors"

// ErrOfflineNoCache is returned by Read when offline with no usable entry
// and no fallback.
var ErrOfflineNoCache = errors.New("offline and no cached response")

// ErrOfflineMutation is returned by Mutate when offline without a
// QueueTarget.
var ErrOfflineMutation = errors.New("offline and mutation not queueable")
