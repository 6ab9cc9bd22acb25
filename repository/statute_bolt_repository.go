package repository

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lexdraft-backend/models"

	"go.etcd.io/bbolt"
)

var (
	bucketSections   = []byte("sections")
	bucketEmbeddings = []byte("embeddings")
	bucketMeta       = []byte("meta")

	metaKey = []byte("index")
)

// ErrIndexMissing is returned when the index file or its buckets do not exist
var ErrIndexMissing = errors.New("index file missing or empty")

// lockTimeout bounds how long we wait for another process holding the file
const lockTimeout = 5 * time.Second

// BoltIndexFile is the decoded content of an index file
type BoltIndexFile struct {
	Metadata models.IndexMetadata
	Sections []models.StatuteSection
	Vectors  [][]float32 // Parallel to Sections
}

// SaveBoltIndex writes sections and their embeddings to path, replacing any
// existing file. The file is written next to path and renamed into place, so
// a concurrent reader never sees a half-built index.
func SaveBoltIndex(path string, meta models.IndexMetadata, sections []models.StatuteSection, records []models.EmbeddingRecord) error {
	if len(sections) != len(records) {
		return fmt.Errorf("have %d sections but %d embeddings", len(sections), len(records))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	// Fail fast if another build still has the index open. The server loads
	// the file and closes it, so it never holds the lock.
	if _, err := os.Stat(path); err == nil {
		existing, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
		if err != nil {
			return fmt.Errorf("index %s is in use: %w", path, err)
		}
		existing.Close()
	}

	tmpPath := path + ".tmp"
	os.Remove(tmpPath)

	db, err := bbolt.Open(tmpPath, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		sb, err := tx.CreateBucketIfNotExists(bucketSections)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		eb, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		if err != nil {
			return err
		}

		for i, section := range sections {
			if records[i].SectionID != section.SectionID {
				return fmt.Errorf("embedding %d belongs to section %s, expected %s", i, records[i].SectionID, section.SectionID)
			}
			data, err := json.Marshal(section)
			if err != nil {
				return err
			}
			// Big-endian order keys keep cursor iteration in corpus order
			if err := sb.Put(orderKey(section.Order), data); err != nil {
				return err
			}
			vec, err := json.Marshal(records[i])
			if err != nil {
				return err
			}
			if err := eb.Put([]byte(section.SectionID), vec); err != nil {
				return err
			}
		}

		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return mb.Put(metaKey, data)
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

// LoadBoltIndex opens the index at path read-only and decodes it fully.
// The returned file is independent of the database handle.
func LoadBoltIndex(path string) (*BoltIndexFile, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
		}
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer db.Close()

	out := &BoltIndexFile{}
	err = db.View(func(tx *bbolt.Tx) error {
		sb := tx.Bucket(bucketSections)
		eb := tx.Bucket(bucketEmbeddings)
		mb := tx.Bucket(bucketMeta)
		if sb == nil || eb == nil || mb == nil {
			return ErrIndexMissing
		}

		if data := mb.Get(metaKey); data != nil {
			if err := json.Unmarshal(data, &out.Metadata); err != nil {
				return fmt.Errorf("corrupt index metadata: %w", err)
			}
		}

		return sb.ForEach(func(_, v []byte) error {
			var section models.StatuteSection
			if err := json.Unmarshal(v, &section); err != nil {
				return fmt.Errorf("corrupt section record: %w", err)
			}
			data := eb.Get([]byte(section.SectionID))
			if data == nil {
				return fmt.Errorf("no embedding for section %s", section.SectionID)
			}
			var record models.EmbeddingRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("corrupt embedding for section %s: %w", section.SectionID, err)
			}
			out.Sections = append(out.Sections, section)
			out.Vectors = append(out.Vectors, record.Vector)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBoltMetadata returns only the metadata of the index at path
func ReadBoltMetadata(path string) (*models.IndexMetadata, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
		}
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer db.Close()

	var meta models.IndexMetadata
	err = db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		if mb == nil {
			return ErrIndexMissing
		}
		data := mb.Get(metaKey)
		if data == nil {
			return ErrIndexMissing
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func orderKey(order int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(order))
	return key
}
