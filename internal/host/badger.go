package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/c-wilkinson/T4Toolbox/logger"
)

const metaPrefix = "meta/"

// BadgerMetadata stores item metadata in an embedded BadgerDB instead of
// the project files. It implements manifest.Metadata.
type BadgerMetadata struct {
	db *badger.DB
}

// badgerLogger adapts logger.Logger to badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBadgerMetadata opens the store in dir, creating it when missing. An
// empty dir opens an in-memory store.
func OpenBadgerMetadata(dir string, log logger.Logger) (*BadgerMetadata, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create metadata directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{log: log.WithFields(logger.F("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	return &BadgerMetadata{db: db}, nil
}

// Close releases the database.
func (b *BadgerMetadata) Close() error {
	return b.db.Close()
}

// Get returns the value of key on itemPath, empty when unset.
func (b *BadgerMetadata) Get(ctx context.Context, itemPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(itemPath, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read %s of %s: %w", key, itemPath, err)
	}
	return value, nil
}

// Set stores value under key on itemPath. An empty value removes the key.
func (b *BadgerMetadata) Set(ctx context.Context, itemPath, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		k := metaKey(itemPath, key)
		if value == "" {
			return txn.Delete(k)
		}
		return txn.Set(k, []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write %s of %s: %w", key, itemPath, err)
	}
	return nil
}

// Keys returns the metadata stored for itemPath.
func (b *BadgerMetadata) Keys(ctx context.Context, itemPath string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := itemPrefix(itemPath)
	out := make(map[string]string)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[string(item.Key()[len(prefix):])] = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list metadata of %s: %w", itemPath, err)
	}
	return out, nil
}

// Keys are "meta/<lower-cased slash path>\x00<key>" so every key of an
// item shares a prefix no other item can extend.
func itemPrefix(itemPath string) []byte {
	p := filepath.ToSlash(filepath.Clean(itemPath))
	return []byte(metaPrefix + strings.ToLower(p) + "\x00")
}

func metaKey(itemPath, key string) []byte {
	return append(itemPrefix(itemPath), key...)
}
