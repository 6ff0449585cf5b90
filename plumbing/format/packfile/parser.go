package packfile

import (
	"fmt"
	"io"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/idxfile"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

// pendingEntry records one entry's position and raw header while its type
// (for deltas) is still unresolved mode used on the receive-pack side.
type pendingEntry struct {
	offset uint64
	header *ObjectHeader
	raw    []byte // delta bytes, or final content for non-delta entries
}

// Parsed is the outcome of indexing a freshly-received packfile: every
// object's final (resolved) type, content and OID, plus the pack checksum.
type Parsed struct {
	Objects  []ResolvedObject
	PackSHA  plumbing.Hash
}

// ResolvedObject is one fully-resolved object discovered while indexing.
type ResolvedObject struct {
	Hash   plumbing.Hash
	Type   plumbing.ObjectType
	Offset uint64
	CRC32  uint32
	Data   []byte
}

// ParseAndIndex stream-parses every entry of a packfile, deferring delta
// resolution until all offsets are known, then resolves every delta and
// computes the OID of each object, producing both the resolved object set
// and (via BuildIndex) a ready-to-write idx v2. resolver supplies bases for
// ref-deltas that point outside this pack (thin packs); it may be nil.
func ParseAndIndex(r io.Reader, resolver BaseResolver) (*Parsed, error) {
	sc := NewScanner(r)
	_, count, err := sc.Header()
	if err != nil {
		return nil, err
	}

	pending := make([]*pendingEntry, 0, count)
	byOffset := make(map[uint64]*pendingEntry, count)

	for i := uint32(0); i < count; i++ {
		offset := uint64(sc.r.N())
		hdr, err := sc.NextObjectHeader()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrTruncated, i, err)
		}
		hdr.Offset = int64(offset)

		content, err := sc.ReadObjectContent(hdr)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrTruncated, i, err)
		}

		pe := &pendingEntry{offset: offset, header: hdr, raw: content}
		pending = append(pending, pe)
		byOffset[offset] = pe
	}

	// Validate trailer: the checksum must be taken before reading
	// the trailer bytes themselves.
	computed := sc.Checksum()
	trailer, err := sc.Trailer()
	if err != nil {
		return nil, err
	}
	if trailer != computed {
		return nil, fmt.Errorf("%w: expected %s got %s", ErrChecksumMismatch, trailer, computed)
	}

	resolved := make([]ResolvedObject, 0, len(pending))
	cache := make(map[uint64]ResolvedObject, len(pending))

	var resolve func(pe *pendingEntry, depth int) (ResolvedObject, error)
	resolve = func(pe *pendingEntry, depth int) (ResolvedObject, error) {
		if r, ok := cache[pe.offset]; ok {
			return r, nil
		}
		if depth > DefaultMaxDeltaDepth {
			return ResolvedObject{}, ErrMaxDepthExceeded
		}

		switch pe.header.Type {
		case plumbing.CommitObject, plumbing.TreeObject, plumbing.BlobObject, plumbing.TagObject:
			oid, _ := objHashAndSerialize(pe.header.Type, pe.raw)
			ro := ResolvedObject{Hash: oid, Type: pe.header.Type, Offset: pe.offset, Data: pe.raw}
			cache[pe.offset] = ro
			return ro, nil

		case plumbing.OffsetDeltaObject:
			base, ok := byOffset[uint64(pe.header.OffsetBase)]
			if !ok {
				return ResolvedObject{}, fmt.Errorf("%w: offset delta base not found", ErrInvalidObject)
			}
			baseRo, err := resolve(base, depth+1)
			if err != nil {
				return ResolvedObject{}, err
			}
			data, err := PatchDelta(baseRo.Data, pe.raw)
			if err != nil {
				return ResolvedObject{}, err
			}
			oid, _ := objHashAndSerialize(baseRo.Type, data)
			ro := ResolvedObject{Hash: oid, Type: baseRo.Type, Offset: pe.offset, Data: data}
			cache[pe.offset] = ro
			return ro, nil

		case plumbing.RefDeltaObject:
			var baseType plumbing.ObjectType
			var baseData []byte
			if basePe, ok := findByHash(pending, resolve, pe.header.RefBase); ok {
				ro, err := resolve(basePe, depth+1)
				if err != nil {
					return ResolvedObject{}, err
				}
				baseType, baseData = ro.Type, ro.Data
			} else if resolver != nil {
				t, d, err := resolver.GetRawObject(pe.header.RefBase)
				if err != nil {
					return ResolvedObject{}, fmt.Errorf("%w: %v", ErrReferenceDeltaNotFound, err)
				}
				baseType, baseData = t, d
			} else {
				return ResolvedObject{}, fmt.Errorf("%w: %s", ErrReferenceDeltaNotFound, pe.header.RefBase)
			}

			data, err := PatchDelta(baseData, pe.raw)
			if err != nil {
				return ResolvedObject{}, err
			}
			oid, _ := objHashAndSerialize(baseType, data)
			ro := ResolvedObject{Hash: oid, Type: baseType, Offset: pe.offset, Data: data}
			cache[pe.offset] = ro
			return ro, nil

		default:
			return ResolvedObject{}, fmt.Errorf("%w: %s", ErrInvalidObject, pe.header.Type)
		}
	}

	for _, pe := range pending {
		ro, err := resolve(pe, 0)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, ro)
	}

	return &Parsed{Objects: resolved, PackSHA: trailer}, nil
}

// findByHash performs the (rare, O(n)) lookup of a ref-delta base that lives
// earlier in the same pack but whose OID is only known once resolved.
func findByHash(pending []*pendingEntry, resolve func(*pendingEntry, int) (ResolvedObject, error), h plumbing.Hash) (*pendingEntry, bool) {
	for _, pe := range pending {
		ro, err := resolve(pe, 0)
		if err == nil && ro.Hash == h {
			return pe, true
		}
	}
	return nil, false
}

func objHashAndSerialize(t plumbing.ObjectType, payload []byte) (plumbing.Hash, []byte) {
	header := fmt.Sprintf("%s %d\x00", t, len(payload))
	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	return ehash.Sum(buf), buf
}

// BuildIndex produces idx v2 bytes for a Parsed pack, once every offset
// is known and all deltas have resolved to real types and OIDs.
func BuildIndex(p *Parsed) ([]byte, error) {
	w := &idxfile.Writer{}
	for _, o := range p.Objects {
		crc := crc32Of(o.Data)
		w.Add(o.Hash, o.Offset, crc)
	}
	return w.Encode(p.PackSHA)
}
