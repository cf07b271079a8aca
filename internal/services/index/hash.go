package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// ContentHash returns the lowercase hex SHA-256 digest of the file at path
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type fileStamp struct {
	size  int64
	mtime int64
}

type cachedHash struct {
	stamp fileStamp
	hash  string
}

// HashCache memoizes the content hash of each path for its current size and mtime,
// so an unchanged file is read once per process and a rewritten file replaces its entry
type HashCache struct {
	mu     sync.Mutex
	hashes map[string]cachedHash
}

func NewHashCache() *HashCache {
	return &HashCache{hashes: make(map[string]cachedHash)}
}

// Hash returns the content hash of path, reading the file only when its size or
// modification time changed since the last call
func (c *HashCache) Hash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	stamp := fileStamp{size: info.Size(), mtime: info.ModTime().UnixNano()}

	c.mu.Lock()
	cached, ok := c.hashes[path]
	c.mu.Unlock()
	if ok && cached.stamp == stamp {
		return cached.hash, nil
	}

	hash, err := ContentHash(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.hashes[path] = cachedHash{stamp: stamp, hash: hash}
	c.mu.Unlock()
	return hash, nil
}

// Len returns the number of cached paths
func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hashes)
}
