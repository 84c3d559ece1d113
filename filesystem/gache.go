package filesystem

import (
	"io"
	"os"

	"github.com/metafates/gache"
)

// Gache is the gache.FileSystem view of the backend. It resolves the backend
// on every call, so caches built before a Use follow it.
func Gache() gache.FileSystem {
	return gacheFs{}
}

type gacheFs struct{}

func (gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return API().OpenFile(name, flag, perm)
}

func (gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return API().MkdirAll(path, perm)
}
