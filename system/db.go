package system

import (
	"encoding/binary"
	"log"
	"os"
	"time"

	// for lifetime counters
	bolt "go.etcd.io/bbolt"
)

var countersBucket = []byte("counters")

type counterStore struct {
	db *bolt.DB
}

// openStore opens the bolt database holding lifetime counters and loads
// them into Stats so a restart doesn't zero the status page.
func (s *System) openStore() error {
	filename := s.config.Sec.BoltDB
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			log.Println("creating new counter database:", filename)
		} else {
			log.Printf("couldn't get fileinfo for counter db %q: %v", filename, err)
		}
	}

	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(countersBucket)
		return err
	}); err != nil {
		db.Close()
		return err
	}
	s.store = counterStore{db: db}

	s.Stats.LifetimeHits = s.store.load("hits")
	s.Stats.LifetimeSubmissions = s.store.load("submissions")
	log.Printf("counter database open, lifetime hits %d, submissions %d",
		s.Stats.LifetimeHits, s.Stats.LifetimeSubmissions)
	return nil
}

// flushCounters persists the in-memory lifetime counters.
func (s *System) flushCounters() error {
	if s.store.db == nil {
		return nil
	}
	return s.store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(countersBucket)
		if err := b.Put([]byte("hits"), itob(s.Stats.LifetimeHits)); err != nil {
			return err
		}
		return b.Put([]byte("submissions"), itob(s.Stats.LifetimeSubmissions))
	})
}

// flushLoop persists counters once a minute so a crash loses little.
func (s *System) flushLoop() {
	for range time.Tick(time.Minute) {
		if err := s.flushCounters(); err != nil {
			log.Println("error flushing counters:", err)
		}
	}
}

func (c counterStore) load(name string) uint64 {
	if c.db == nil {
		return 0
	}
	var v uint64
	c.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(countersBucket).Get([]byte(name)); len(b) == 8 {
			v = binary.BigEndian.Uint64(b)
		}
		return nil
	})
	return v
}

func (c counterStore) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
