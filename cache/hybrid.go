package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/inconshreveable/log15"
)

// ErrIO wraps every filesystem failure of a HybridCache. It never
// wraps blocksim.ErrCorruptArtifact.
var ErrIO = errors.New("cache: i/o error")

// HybridCache keeps artifacts in memory and writes each one through
// to dir/<base58(key)>. The memory tier is authoritative within the
// process; files are only read on a memory miss and the value read is
// promoted into memory.
type HybridCache struct {
	mem *MemoryCache
	dir string
	log log15.Logger
}

// NewHybridCache creates a cache rooted at dir. The directory is
// created lazily on the first Put.
func NewHybridCache(dir string, logger log15.Logger) (*HybridCache, error) {
	if dir == "" {
		return nil, errors.New("cache: empty cache directory")
	}
	if logger == nil {
		logger = log15.New("module", "cache")
	}
	return &HybridCache{
		mem: NewMemoryCache(),
		dir: dir,
		log: logger.New("dir", dir),
	}, nil
}

// Dir returns the cache directory.
func (c *HybridCache) Dir() string { return c.dir }

// Memory returns the in-memory tier.
func (c *HybridCache) Memory() *MemoryCache { return c.mem }

// Path returns the file that holds key.
func (c *HybridCache) Path(key types.CryptoHash) string {
	return filepath.Join(c.dir, KeyToB58(key[:]))
}

// Put stores value in memory and on disk. The file is rewritten unless
// it already holds exactly the new encoding.
func (c *HybridCache) Put(key types.CryptoHash, value types.CompiledContract) error {
	c.mem.Insert(key[:], value)

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create dir: %w: %w", ErrIO, err)
	}
	serialized, err := cramberry.Marshal(&value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	path := c.Path(key)
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, serialized):
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cache: read %s: %w: %w", path, ErrIO, err)
	}
	if err := writeFileAtomic(path, serialized); err != nil {
		return err
	}
	c.log.Debug("artifact written", "key", key, "bytes", len(serialized))
	return nil
}

// Get returns the artifact for key from memory, falling back to disk.
// It returns nil, nil when neither tier has it. An undecodable file is
// reported as an error wrapping blocksim.ErrCorruptArtifact.
func (c *HybridCache) Get(key types.CryptoHash) (*types.CompiledContract, error) {
	if v, ok := c.mem.Load(key[:]); ok {
		return &v, nil
	}

	path := c.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w: %w", path, ErrIO, err)
	}

	var v types.CompiledContract
	if err := cramberry.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w: %w", key, blocksim.ErrCorruptArtifact, err)
	}
	c.mem.Insert(key[:], v)
	c.log.Debug("artifact promoted from disk", "key", key)
	return &v, nil
}

// writeFileAtomic writes data to a temporary file next to path and
// renames it into place, so readers never see a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w: %w", ErrIO, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("cache: write %s: %w: %w", name, ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("cache: close %s: %w: %w", name, ErrIO, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("cache: rename %s: %w: %w", name, ErrIO, err)
	}
	return nil
}
