package artifact

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Store - resolves contract names to factories built from a Hardhat artifacts directory
type Store struct {
	dir string
	ttl time.Duration

	cache *ccache.Cache

	index map[string][]string
	mx    sync.Mutex
}

// StoreOption -
type StoreOption func(*Store)

// WithCacheTTL - lifetime of a parsed factory in cache
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStore -
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:   dir,
		ttl:   time.Hour,
		cache: ccache.New(ccache.Configure().MaxSize(1000)),
	}
	for i := range opts {
		opts[i](s)
	}
	return s
}

// Factory - contract factory by contract name or by fully qualified name `<source>:<contract>`
func (s *Store) Factory(name string) (*Factory, error) {
	item, err := s.cache.Fetch(name, s.ttl, func() (interface{}, error) {
		return s.load(name)
	})
	if err != nil {
		return nil, err
	}
	return item.Value().(*Factory), nil
}

// Names - sorted contract names found in the artifacts directory
func (s *Store) Names() ([]string, error) {
	index, err := s.getIndex()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Reset - forgets the directory index and every cached factory. Call it after recompilation.
func (s *Store) Reset() {
	s.mx.Lock()
	s.index = nil
	s.mx.Unlock()

	s.cache.Clear()
}

// Close -
func (s *Store) Close() error {
	s.cache.Stop()
	return nil
}

func (s *Store) load(name string) (*Factory, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("contract", name).Str("path", path).Msg("loading artifact")

	a, err := Load(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return NewFactory(a)
}

func (s *Store) resolve(name string) (string, error) {
	index, err := s.getIndex()
	if err != nil {
		return "", err
	}

	contract, source := name, ""
	if i := strings.LastIndex(name, ":"); i >= 0 {
		source, contract = name[:i], name[i+1:]
	}

	paths, ok := index[contract]
	if !ok {
		return "", errors.Wrap(ErrUnknownContract, name)
	}

	if source != "" {
		for _, path := range paths {
			if filepath.ToSlash(filepath.Dir(path)) == filepath.ToSlash(filepath.Join(s.dir, source)) {
				return path, nil
			}
		}
		return "", errors.Wrap(ErrUnknownContract, name)
	}

	if len(paths) > 1 {
		return "", errors.Wrapf(ErrAmbiguousContract, "%s: %s", name, strings.Join(paths, ", "))
	}
	return paths[0], nil
}

func (s *Store) getIndex() (map[string][]string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.index != nil {
		return s.index, nil
	}

	index := make(map[string][]string)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" || strings.HasSuffix(path, debugFileExt) {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), ".json")
		index[name] = append(index[name], path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan artifacts directory %s", s.dir)
	}

	s.index = index
	return index, nil
}
