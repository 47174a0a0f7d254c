package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Keys persisted by the session store
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
)

// Backend names accepted by Open
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Backends lists every backend name in display order
var Backends = []string{BackendKeyring, BackendFile, BackendSQLite, BackendMemory}

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown storage backend")

// Storage is durable client-side key/value storage. Writes must be durable
// when Set or Remove returns. Removing a missing key is not an error.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Options selects and configures a backend
type Options struct {
	Backend string
	// Path is the file or database location for the file and sqlite backends
	Path string
	// Namespace scopes keyring entries, typically the API host
	Namespace string
}

// Open creates the backend named in opts
func Open(opts Options) (Storage, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendKeyring, "":
		return NewKeyring(opts.Namespace), nil
	case BackendFile:
		path := opts.Path
		if path == "" {
			p, err := DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFile(path), nil
	case BackendSQLite:
		path := opts.Path
		if path == "" {
			p, err := DefaultSQLitePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid options: keyring, file, sqlite, memory)", ErrUnknownBackend, opts.Backend)
	}
}

// Close releases the backend's resources if it holds any
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
