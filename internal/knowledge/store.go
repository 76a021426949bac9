package knowledge

import (
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"cracksql/internal/dialect"
	"cracksql/internal/pathfinder"
	"cracksql/internal/signature"
)

// Options configure a Store.
type Options struct {
	// CatalogDir overrides the embedded catalogs with <dir>/<dialect>.yaml.
	CatalogDir string
	// CachePath is the badger directory for derived signatures. Empty keeps
	// the cache in memory.
	CachePath string
	// MaxCandidates caps the entries returned per lookup; zero means no cap.
	MaxCandidates int
	Logger        logrus.FieldLogger
}

// Store builds catalogs lazily, once per dialect, and shares them between
// concurrent translations.
type Store struct {
	opts  Options
	log   logrus.FieldLogger
	cache *badger.DB

	group    singleflight.Group
	mu       sync.RWMutex
	catalogs map[dialect.Dialect]*Catalog
}

// NewStore opens the signature cache.
func NewStore(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var bopts badger.Options
	if opts.CachePath == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.CachePath)
	}
	bopts = bopts.WithLogger(log.WithField("component", "badger")).WithNumVersionsToKeep(1)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{
		opts:     opts,
		log:      log.WithField("component", "knowledge"),
		cache:    db,
		catalogs: make(map[dialect.Dialect]*Catalog),
	}, nil
}

// Close releases the signature cache.
func (s *Store) Close() error {
	return s.cache.Close()
}

// Catalog returns the catalog of d, building it on first use.
func (s *Store) Catalog(d dialect.Dialect) (*Catalog, error) {
	s.mu.RLock()
	c, ok := s.catalogs[d]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := s.group.Do(string(d), func() (interface{}, error) {
		s.mu.RLock()
		c, ok := s.catalogs[d]
		s.mu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := s.build(d)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.catalogs[d] = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// LookupCandidates returns the entries of d whose signature is rooted at
// rule, in catalog order.
func (s *Store) LookupCandidates(d dialect.Dialect, rule string) ([]*Entry, error) {
	c, err := s.Catalog(d)
	if err != nil {
		return nil, err
	}
	out := c.Lookup(rule)
	if s.opts.MaxCandidates > 0 && len(out) > s.opts.MaxCandidates {
		out = out[:s.opts.MaxCandidates]
	}
	return out, nil
}

// Signature derives the signature of targets under rule in d, going through
// the cache.
func (s *Store) Signature(d dialect.Dialect, rule string, targets []string) (*signature.Tree, error) {
	g, err := dialect.Grammar(d)
	if err != nil {
		return nil, err
	}
	return s.signature(pathfinder.New(g), d, rule, targets)
}

func (s *Store) build(d dialect.Dialect) (*Catalog, error) {
	g, err := dialect.Grammar(d)
	if err != nil {
		return nil, err
	}
	file, err := readCatalogFile(d, s.opts.CatalogDir)
	if err != nil {
		return nil, err
	}

	finder := pathfinder.New(g)
	c := newCatalog(d)
	for i, e := range file.Entries {
		e.Dialect = d
		e.Order = i
		log := s.log.WithFields(logrus.Fields{"dialect": d, "entry": e.Name})

		if err := e.validate(); err != nil {
			log.WithError(err).Warn("skipping catalog entry")
			continue
		}
		if e.SignatureText != "" {
			e.Signature, err = signature.Parse(e.SignatureText)
		} else {
			e.Signature, err = s.signature(finder, d, e.Rule, e.Targets)
		}
		if err != nil {
			log.WithError(err).Warn("skipping catalog entry without signature")
			continue
		}
		c.add(e)
	}
	s.log.WithFields(logrus.Fields{
		"dialect": d,
		"entries": len(c.entries),
		"skipped": len(file.Entries) - len(c.entries),
	}).Info("catalog loaded")
	return c, nil
}

func cacheKey(d dialect.Dialect, rule string, targets []string) []byte {
	return []byte("signature/" + string(d) + "/" + strings.ToLower(rule) + "/" + strings.Join(targets, "\x1f"))
}

func (s *Store) signature(finder *pathfinder.Finder, d dialect.Dialect, rule string, targets []string) (*signature.Tree, error) {
	key := cacheKey(d, rule, targets)

	var cached string
	err := s.cache.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cached = string(val)
			return nil
		})
	})
	if err == nil {
		if sig, perr := signature.Parse(cached); perr == nil {
			return sig, nil
		}
	} else if err != badger.ErrKeyNotFound {
		s.log.WithError(err).Warn("signature cache read failed")
	}

	sig, err := finder.Find(rule, targets)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(sig.String()))
	}); err != nil {
		s.log.WithError(err).Warn("signature cache write failed")
	}
	return sig, nil
}
