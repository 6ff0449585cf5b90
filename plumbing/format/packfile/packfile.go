package packfile

import (
	"fmt"
	"io"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/idxfile"
)

// BaseResolver looks up an object outside this pack, used to resolve
// ref-delta bases that point at objects in another pack or stored loose
// (for a ref-delta, the base OID resolves through the object database).
type BaseResolver interface {
	GetRawObject(h plumbing.Hash) (plumbing.ObjectType, []byte, error)
}

// cacheKey identifies a memoised resolved object by its pack offset.
type cacheKey int64

// Packfile is a packfile reader backed by random access to the pack bytes
// and an idx for O(log n) lookup.
type Packfile struct {
	ra       io.ReaderAt
	idx      *idxfile.Index
	resolver BaseResolver
	maxDepth int

	// Resolved objects are memoised in an lru.Cache keyed by pack offset.
	// The cache itself evicts by recency; cacheBytes/cacheBudget layer the
	// byte bound on top, since lru.Cache only counts entries.
	mu          sync.Mutex
	cache       *lru.Cache
	cacheBytes  int
	cacheBudget int
}

type cachedObject struct {
	typ  plumbing.ObjectType
	data []byte
}

// NewPackfile constructs a reader over pack bytes (via ra) indexed by idx.
// resolver is consulted for ref-delta bases not found in this pack; it may
// be nil if the pack is self-contained. cacheBudget bounds the resolved-
// object LRU cache in bytes; 0 selects a small default.
func NewPackfile(ra io.ReaderAt, idx *idxfile.Index, resolver BaseResolver, cacheBudget int) *Packfile {
	if cacheBudget <= 0 {
		cacheBudget = 64 << 20
	}
	p := &Packfile{
		ra:          ra,
		idx:         idx,
		resolver:    resolver,
		maxDepth:    DefaultMaxDeltaDepth,
		cache:       lru.New(0),
		cacheBudget: cacheBudget,
	}
	p.cache.OnEvicted = func(_ lru.Key, value interface{}) {
		p.cacheBytes -= len(value.(cachedObject).data)
	}
	return p
}

// Has reports whether h is present in this pack's idx.
func (p *Packfile) Has(h plumbing.Hash) bool {
	_, ok := p.idx.FindOffset(h)
	return ok
}

// Read resolves h to its reconstructed, non-delta bytes and kind.
func (p *Packfile) Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	offset, ok := p.idx.FindOffset(h)
	if !ok {
		return plumbing.InvalidObject, nil, plumbing.ErrObjectNotFound
	}
	return p.readAtOffset(offset, 0)
}

// readAtOffset resolves the object whose header starts at offset, applying
// delta chains up to p.maxDepth.
func (p *Packfile) readAtOffset(offset uint64, depth int) (plumbing.ObjectType, []byte, error) {
	if depth > p.maxDepth {
		return plumbing.InvalidObject, nil, ErrMaxDepthExceeded
	}

	if cached, ok := p.cacheGet(cacheKey(offset)); ok {
		return cached.typ, cached.data, nil
	}

	sr := io.NewSectionReader(p.ra, int64(offset), 1<<62-int64(offset))
	sc := NewScanner(sr)
	// Scanner offsets are relative to sr, i.e. relative to `offset`; adjust
	// OffsetBase back to absolute pack offsets.
	hdr, err := sc.NextObjectHeader()
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	switch hdr.Type {
	case plumbing.CommitObject, plumbing.TreeObject, plumbing.BlobObject, plumbing.TagObject:
		content, err := sc.ReadObjectContent(hdr)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}
		p.cachePut(cacheKey(offset), hdr.Type, content)
		return hdr.Type, content, nil

	case plumbing.OffsetDeltaObject:
		deltaBytes, err := sc.ReadObjectContent(hdr)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}
		baseOffset := uint64(hdr.OffsetBase + int64(offset))
		baseType, baseContent, err := p.readAtOffset(baseOffset, depth+1)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}
		content, err := PatchDelta(baseContent, deltaBytes)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}
		p.cachePut(cacheKey(offset), baseType, content)
		return baseType, content, nil

	case plumbing.RefDeltaObject:
		deltaBytes, err := sc.ReadObjectContent(hdr)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}

		var baseType plumbing.ObjectType
		var baseContent []byte
		if baseOffset, ok := p.idx.FindOffset(hdr.RefBase); ok {
			baseType, baseContent, err = p.readAtOffset(baseOffset, depth+1)
		} else if p.resolver != nil {
			baseType, baseContent, err = p.resolver.GetRawObject(hdr.RefBase)
		} else {
			err = fmt.Errorf("%w: %s", ErrReferenceDeltaNotFound, hdr.RefBase)
		}
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}

		content, err := PatchDelta(baseContent, deltaBytes)
		if err != nil {
			return plumbing.InvalidObject, nil, err
		}
		p.cachePut(cacheKey(offset), baseType, content)
		return baseType, content, nil

	default:
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: %s", ErrInvalidObject, hdr.Type)
	}
}

// IterEntries calls fn for every object in the pack, in idx (sorted OID)
// order.
func (p *Packfile) IterEntries(fn func(h plumbing.Hash, t plumbing.ObjectType, data []byte) error) error {
	for _, e := range p.idx.Entries {
		t, data, err := p.Read(e.Hash)
		if err != nil {
			return err
		}
		if err := fn(e.Hash, t, data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packfile) cacheGet(k cacheKey) (cachedObject, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cache.Get(k)
	if !ok {
		return cachedObject{}, false
	}
	return v.(cachedObject), true
}

func (p *Packfile) cachePut(k cacheKey, t plumbing.ObjectType, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.cache.Get(k); exists {
		return
	}
	p.cache.Add(k, cachedObject{typ: t, data: data})
	p.cacheBytes += len(data)
	for p.cacheBytes > p.cacheBudget && p.cache.Len() > 1 {
		p.cache.RemoveOldest()
	}
}

// bytesReaderAt adapts a []byte to io.ReaderAt, for tests and for loading
// small packs fully into memory.
type bytesReaderAt struct {
	b []byte
}

func NewBytesReaderAt(b []byte) io.ReaderAt {
	return &bytesReaderAt{b: b}
}

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
