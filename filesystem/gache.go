package filesystem

import (
	"io"
	"os"
	"time"

	"github.com/metafates/gache"
)

// gacheFs routes gache file access through the active backend, so caches
// land in memory under test.
type gacheFs struct{}

func (gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return API().OpenFile(name, flag, perm)
}

func (gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return API().MkdirAll(path, perm)
}

// Cache returns a JSON file cache at path. Zero lifetime never expires.
func Cache[T any](path string, lifetime time.Duration) *gache.Cache[T] {
	return gache.New[T](&gache.Options{
		Path:       path,
		Lifetime:   lifetime,
		FileSystem: gacheFs{},
	})
}
