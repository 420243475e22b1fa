// Package inmemdb is a process-local implementation of the school and survey repositories.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"
)

// DB holds every table behind a single lock so that multi-table writes are atomic.
type DB struct {
	mutex sync.RWMutex
	seq   int64

	schools     map[string]*schoolRow
	users       map[string]*userRow
	questions   map[string]*questionRow
	responses   map[string]*responseRow
	rituals     map[string]*ritualRow
	completions map[string]*completionRow
	attempts    map[string]*attemptRow
	scores      map[string]*scoreRow
}

func Open() *DB {
	db := new(DB)
	db.reset()
	return db
}

// Reset drops every row (tests).
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.schools = make(map[string]*schoolRow)
	db.users = make(map[string]*userRow)
	db.questions = make(map[string]*questionRow)
	db.responses = make(map[string]*responseRow)
	db.rituals = make(map[string]*ritualRow)
	db.completions = make(map[string]*completionRow)
	db.attempts = make(map[string]*attemptRow)
	db.scores = make(map[string]*scoreRow)
}

// Close is a no-op; it lets the store share the lifecycle of relational ones.
func (db *DB) Close() error { return nil }

// nextKey returns a new row id and its insertion sequence. The lock must be held.
func (db *DB) nextKey() (string, int64) {
	db.seq++
	return uuid.New().String(), db.seq
}
