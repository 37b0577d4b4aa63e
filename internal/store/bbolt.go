package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used in the bbolt database.
var (
	bucketSettings = []byte("settings")
	bucketAudit    = []byte("audit")
)

// auditKeyLayout is fixed width so that key order is time order.
const auditKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a settings entry does not exist.
var ErrNotFound = errors.New("not found")

// BoltStore implements SettingsStore using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at the given path and
// ensures all required buckets exist. The file is created with 0600 permissions.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSettings, bucketAudit} {
			if _, bErr := tx.CreateBucketIfNotExists(b); bErr != nil {
				return fmt.Errorf("create bucket %s: %w", b, bErr)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSettings returns the settings of identity, or ErrNotFound.
func (s *BoltStore) GetSettings(identity string) (*Settings, error) {
	var settings Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSettings).Get([]byte(identity))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &settings)
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// PutSettings stores the settings of identity.
func (s *BoltStore) PutSettings(identity string, settings *Settings) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		return tx.Bucket(bucketSettings).Put([]byte(identity), data)
	})
}

// DeleteSettings removes the settings of identity. Missing entries are not an error.
func (s *BoltStore) DeleteSettings(identity string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(identity))
	})
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// AppendAudit appends an audit entry to the log of its identity. Entries are
// keyed by timestamp + UUID for ordering and uniqueness.
func (s *BoltStore) AppendAudit(entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketAudit).CreateBucketIfNotExists([]byte(entry.Identity))
		if err != nil {
			return fmt.Errorf("create audit bucket: %w", err)
		}
		key := fmt.Sprintf("%s_%s", entry.Timestamp.UTC().Format(auditKeyLayout), uuid.New().String())
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		return b.Put([]byte(key), data)
	})
}

// ListAudit returns the most recent audit entries of identity, newest first.
// An empty identity lists every identity. A limit of zero means no limit.
func (s *BoltStore) ListAudit(identity string, limit int) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketAudit)
		if identity != "" {
			b := root.Bucket([]byte(identity))
			if b == nil {
				return nil
			}
			return collectAudit(b, limit, &entries)
		}
		return root.ForEachBucket(func(name []byte) error {
			return collectAudit(root.Bucket(name), limit, &entries)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// collectAudit walks b newest first (keys sort by time).
func collectAudit(b *bolt.Bucket, limit int, out *[]*AuditEntry) error {
	c := b.Cursor()
	n := 0
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		if limit > 0 && n >= limit {
			break
		}
		var entry AuditEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("decode audit entry %s: %w", k, err)
		}
		*out = append(*out, &entry)
		n++
	}
	return nil
}
