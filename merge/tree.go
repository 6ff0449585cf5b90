package merge

import (
	"sort"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/utils/convert"
)

// ObjectStore is the minimal object-database facet the merge engine needs:
// reading tree/blob payloads by hash and writing the trees/blobs it
// produces. storage/filesystem.Storage and storage's other Storer
// implementations satisfy this directly.
type ObjectStore interface {
	Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error)
	Write(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error)
}

// Conflict records one path the tree merge could not reconcile
// automatically: the index records stages 1/2/3 for this path and the
// working tree gets the marked-up content (for blobs) or
// is left to the caller to materialise the "ours" or "theirs" side (for
// mode/type conflicts a text merge cannot express).
type Conflict struct {
	Path                string
	Base, Ours, Theirs  *object.TreeEntry // nil means absent on that side
	Text                *TextResult       // populated when both sides are
	// mergeable text blobs but the merge produced markers
}

// MergeTrees performs the recursive three-way tree merge:
// base/ours/theirs are root tree hashes (plumbing.ZeroHash
// means "this side had no tree here", e.g. a newly-added path with no
// common ancestor). It returns the OID of the merged tree -- built purely
// from paths that merged cleanly -- and the list of paths that didn't.
func MergeTrees(s ObjectStore, base, ours, theirs plumbing.Hash) (plumbing.Hash, []Conflict, error) {
	return mergeDir(s, "", base, ours, theirs)
}

func loadTree(s ObjectStore, h plumbing.Hash) (*object.Tree, error) {
	if h == plumbing.ZeroHash {
		return &object.Tree{}, nil
	}
	typ, payload, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.TreeObject {
		return nil, object.ErrMalformedTree
	}
	return object.DecodeTree(payload)
}

func entriesByName(t *object.Tree) map[string]*object.TreeEntry {
	m := make(map[string]*object.TreeEntry, len(t.Entries))
	for i := range t.Entries {
		m[t.Entries[i].Name] = &t.Entries[i]
	}
	return m
}

func equalEntry(a, b *object.TreeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Mode == b.Mode && a.Hash == b.Hash
}

func mergeDir(s ObjectStore, dirPath string, baseHash, oursHash, theirsHash plumbing.Hash) (plumbing.Hash, []Conflict, error) {
	baseTree, err := loadTree(s, baseHash)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	oursTree, err := loadTree(s, oursHash)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	theirsTree, err := loadTree(s, theirsHash)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}

	baseE, oursE, theirsE := entriesByName(baseTree), entriesByName(oursTree), entriesByName(theirsTree)

	names := make(map[string]bool)
	for n := range baseE {
		names[n] = true
	}
	for n := range oursE {
		names[n] = true
	}
	for n := range theirsE {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var conflicts []Conflict
	result := &object.Tree{}

	for _, name := range sorted {
		be, oe, te := baseE[name], oursE[name], theirsE[name]
		childPath := name
		if dirPath != "" {
			childPath = dirPath + "/" + name
		}

		oursChanged := !equalEntry(be, oe)
		theirsChanged := !equalEntry(be, te)

		switch {
		case !oursChanged && !theirsChanged:
			if be != nil {
				result.Entries = append(result.Entries, *be)
			}
		case !oursChanged && theirsChanged:
			if te != nil {
				result.Entries = append(result.Entries, *te)
			}
		case oursChanged && !theirsChanged:
			if oe != nil {
				result.Entries = append(result.Entries, *oe)
			}
		default: // both sides touched this path
			if equalEntry(oe, te) {
				if oe != nil {
					result.Entries = append(result.Entries, *oe)
				}
				continue
			}

			switch {
			case oe == nil || te == nil:
				conflicts = append(conflicts, Conflict{Path: childPath, Base: be, Ours: oe, Theirs: te})
			case oe.Mode.IsDir() && te.Mode.IsDir():
				var baseSub plumbing.Hash
				if be != nil && be.Mode.IsDir() {
					baseSub = be.Hash
				}
				subHash, subConflicts, err := mergeDir(s, childPath, baseSub, oe.Hash, te.Hash)
				if err != nil {
					return plumbing.ZeroHash, nil, err
				}
				if len(subConflicts) == 0 {
					result.Entries = append(result.Entries, object.TreeEntry{Name: name, Mode: plumbing.FileModeTree, Hash: subHash})
				} else {
					conflicts = append(conflicts, subConflicts...)
				}
			case oe.Mode == te.Mode && (oe.Mode == plumbing.FileModeRegular || oe.Mode == plumbing.FileModeExecutable):
				mergedEntry, text, err := mergeBlob(s, name, be, oe, te)
				if err != nil {
					return plumbing.ZeroHash, nil, err
				}
				switch {
				case mergedEntry != nil:
					result.Entries = append(result.Entries, *mergedEntry)
				case text != nil:
					conflicts = append(conflicts, Conflict{Path: childPath, Base: be, Ours: oe, Theirs: te, Text: text})
				default:
					// Binary content differing: a plain conflict, no marker text.
					conflicts = append(conflicts, Conflict{Path: childPath, Base: be, Ours: oe, Theirs: te})
				}
			default:
				conflicts = append(conflicts, Conflict{Path: childPath, Base: be, Ours: oe, Theirs: te})
			}
		}
	}

	treeHash, err := s.Write(plumbing.TreeObject, result.EncodeCanonical())
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	return treeHash, conflicts, nil
}

func blobContent(s ObjectStore, h plumbing.Hash) (string, error) {
	if h == plumbing.ZeroHash {
		return "", nil
	}
	typ, payload, err := s.Read(h)
	if err != nil {
		return "", err
	}
	if typ != plumbing.BlobObject {
		return "", object.ErrMalformedTree
	}
	return string(payload), nil
}

// mergeBlob reconciles two differing blob versions of the same path. A
// clean text merge returns the merged entry; a text conflict returns the
// marked-up TextResult; binary content on either side returns neither,
// since splicing conflict markers into binary bytes would corrupt them.
func mergeBlob(s ObjectStore, name string, be, oe, te *object.TreeEntry) (*object.TreeEntry, *TextResult, error) {
	var baseHash plumbing.Hash
	if be != nil {
		baseHash = be.Hash
	}

	baseText, err := blobContent(s, baseHash)
	if err != nil {
		return nil, nil, err
	}
	oursText, err := blobContent(s, oe.Hash)
	if err != nil {
		return nil, nil, err
	}
	theirsText, err := blobContent(s, te.Hash)
	if err != nil {
		return nil, nil, err
	}

	if isBinary(oursText) || isBinary(theirsText) {
		return nil, nil, nil
	}

	result := MergeText(baseText, oursText, theirsText, "ours", "theirs", StyleMerge)

	if !result.CleanMerge {
		return nil, &result, nil
	}

	h, err := s.Write(plumbing.BlobObject, []byte(result.Merged))
	if err != nil {
		return nil, nil, err
	}
	return &object.TreeEntry{Name: name, Mode: oe.Mode, Hash: h}, &result, nil
}

// isBinary applies the same content heuristic the CRLF filter uses to
// decide whether a blob can go through a line-based merge at all.
func isBinary(content string) bool {
	st, err := convert.GetStat(strings.NewReader(content))
	if err != nil {
		return false
	}
	return st.IsBinary()
}

// FastForward reports whether theirs is a (non-strict) descendant of ours,
// in which case the merge may simply move the ref
// fast-forward policy.
func FastForward(g object.Getter, ours, theirs *object.Commit) (bool, error) {
	return object.IsAncestor(g, ours, theirs)
}
