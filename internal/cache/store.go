package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// AudioCache looks synthesized clips up in memory first, then on disk,
// promoting disk hits into memory.
type AudioCache struct {
	memory *MemoryCache
	disk   *DiskCache // nil when no directory is configured
	log    *log.Logger
}

// Open creates the cache levels described by config.
func Open(config Config, logger *log.Logger) (*AudioCache, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &AudioCache{
		memory: NewMemoryCache(config.MemoryCapacity),
		log:    logger,
	}
	if config.Dir == "" {
		return c, nil
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}
	if config.TTL > 0 {
		if n := disk.Prune(time.Now().Add(-config.TTL)); n > 0 {
			logger.Debug("pruned expired audio", "entries", n)
		}
	}
	c.disk = disk
	return c, nil
}

// Get returns the cached clip for key.
func (c *AudioCache) Get(key Key) ([]byte, bool) {
	k := key.String()
	if data, ok := c.memory.Get(k); ok {
		return data, true
	}
	if c.disk == nil {
		return nil, false
	}
	data, ok := c.disk.Get(k)
	if !ok {
		return nil, false
	}
	if err := c.memory.Put(k, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		c.log.Debug("promote to memory", "err", err)
	}
	return data, true
}

// Put stores a clip in both levels. Clips too large for a level skip it.
func (c *AudioCache) Put(key Key, data []byte) error {
	k := key.String()
	if err := c.memory.Put(k, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	if c.disk == nil {
		return nil
	}
	if err := c.disk.Put(k, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	return nil
}

// Stats returns statistics for a level.
func (c *AudioCache) Stats(level Level) Stats {
	if level == LevelDisk {
		if c.disk == nil {
			return Stats{}
		}
		return c.disk.Stats()
	}
	return c.memory.Stats()
}

// Clear empties both levels.
func (c *AudioCache) Clear() error {
	err := c.memory.Clear()
	if c.disk != nil {
		err = errors.Join(err, c.disk.Clear())
	}
	return err
}

// Close persists the disk index.
func (c *AudioCache) Close() error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Close()
}
