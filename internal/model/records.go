package model

import (
	"encoding/json"
	"time"
)

// CacheEntry is a cached response body keyed by request endpoint.
type CacheEntry struct {
	Endpoint string
	Body     []byte
	Expires  time.Time
	CachedAt time.Time
}

// Expired reports whether the entry must be treated as a miss at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.Expires.After(now)
}

// Collection names a locally cached canonical collection.
type Collection string

const (
	CollectionExercises       Collection = "exercises"
	CollectionSplits          Collection = "splits"
	CollectionPersonalRecords Collection = "personal-records"
	CollectionWeightEntries   Collection = "weight-entries"
)

// Collections lists every cacheable collection in pull order.
var Collections = []Collection{
	CollectionExercises,
	CollectionSplits,
	CollectionPersonalRecords,
	CollectionWeightEntries,
}

// Record is one canonical row pulled from the server.
type Record struct {
	Collection Collection
	ID         string
	UserID     string
	Data       json.RawMessage
	UpdatedAt  time.Time
}

// PersonalRecord is the data shape of the personal-records collection.
type PersonalRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ExerciseID string    `json:"exerciseId"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	SessionID  string    `json:"sessionId,omitempty"`
	AchievedAt time.Time `json:"achievedAt"`
}

// WeightEntry is the data shape of the weight-entries collection.
type WeightEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Weight     float64   `json:"weight"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}
