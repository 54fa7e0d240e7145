package cache

import (
	"bytes"
	"image"
	"image/png"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	xflog "github.com/inkframe/inkframe/internal/log"
)

// badgerCache persists frames across daemon restarts. Frames are stored PNG
// encoded; Badger's native entry TTL handles expiry.
type badgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenBadger opens a disk-backed frame cache at path.
func OpenBadger(path string) (Cache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerCache{db: db, logger: xflog.WithComponent("cache")}, nil
}

func (c *badgerCache) Get(key string) (image.Image, bool) {
	var img image.Image
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := png.Decode(bytes.NewReader(val))
			if err != nil {
				return err
			}
			img = decoded
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	return img, true
}

func (c *badgerCache) Set(key string, img image.Image, ttl time.Duration) {
	if ttl <= 0 || key == "" {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), buf.Bytes()).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *badgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

func (c *badgerCache) Close() error { return c.db.Close() }
