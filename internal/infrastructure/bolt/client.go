package bolt

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	// TasksBucket holds JSON-encoded tasks keyed by task ID.
	TasksBucket = []byte("tasks")
	// UserIndexBucket maps "<user_id>\x00<task_id>" to nothing, for per-user scans.
	UserIndexBucket = []byte("tasks_by_user")
)

// Open initializes the BoltDB file and ensures every bucket exists. timeout bounds the
// wait for the file lock held by another process.
func Open(path string, timeout time.Duration, logger *zap.Logger) (*bolt.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{TasksBucket, UserIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("opened bolt store", zap.String("path", path))
	return db, nil
}

// Ping reports whether the database is still open and readable.
func Ping(db *bolt.DB) error {
	if db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(TasksBucket) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}
