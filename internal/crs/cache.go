package crs

import (
	"github.com/cespare/xxhash/v2"
	"github.com/ctessum/geom/proj"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

// srCache memoises parsed spatial references keyed by a hash of their
// definition text. Parsed SRs are never mutated after Parse returns.
type srCache struct {
	lru *lru.Cache[uint64, *proj.SR]
}

func newSRCache(size int) (*srCache, error) {
	if size <= 0 {
		size = 64
	}
	c, err := lru.New[uint64, *proj.SR](size)
	if err != nil {
		return nil, eris.Wrap(err, "crs: create cache")
	}
	return &srCache{lru: c}, nil
}

func (c *srCache) parse(def string) (*proj.SR, error) {
	key := xxhash.Sum64String(def)
	if sr, ok := c.lru.Get(key); ok {
		return sr, nil
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, sr)
	return sr, nil
}

func (c *srCache) len() int {
	return c.lru.Len()
}
