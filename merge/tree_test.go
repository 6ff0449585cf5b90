package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/objfile"
	"github.com/go-git/git-engine/plumbing/object"
)

// memStore is the minimal in-memory ObjectStore the tree-merge tests run
// against.
type memStore struct {
	objects map[plumbing.Hash]memObject
}

type memObject struct {
	typ     plumbing.ObjectType
	payload []byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[plumbing.Hash]memObject)}
}

func (s *memStore) Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	o, ok := s.objects[h]
	if !ok {
		return 0, nil, fmt.Errorf("object %s not found", h)
	}
	return o.typ, o.payload, nil
}

func (s *memStore) Write(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error) {
	h, _ := objfile.HashAndSerialize(t, payload)
	s.objects[h] = memObject{typ: t, payload: payload}
	return h, nil
}

func (s *memStore) blob(t *testing.T, content string) plumbing.Hash {
	h, err := s.Write(plumbing.BlobObject, []byte(content))
	require.NoError(t, err)
	return h
}

func (s *memStore) tree(t *testing.T, entries ...object.TreeEntry) plumbing.Hash {
	tree := &object.Tree{Entries: entries}
	h, err := s.Write(plumbing.TreeObject, tree.EncodeCanonical())
	require.NoError(t, err)
	return h
}

func blobEntry(name string, h plumbing.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: plumbing.FileModeRegular, Hash: h}
}

func TestMergeTreesOneSideModified(t *testing.T) {
	s := newMemStore()
	v1 := s.blob(t, "one\n")
	v2 := s.blob(t, "two\n")

	base := s.tree(t, blobEntry("a.txt", v1))
	ours := s.tree(t, blobEntry("a.txt", v2))
	theirs := base

	merged, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Equal(t, ours, merged)
}

func TestMergeTreesBothAddedIdentically(t *testing.T) {
	s := newMemStore()
	v := s.blob(t, "same\n")

	base := s.tree(t)
	ours := s.tree(t, blobEntry("new.txt", v))
	theirs := s.tree(t, blobEntry("new.txt", v))

	merged, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Equal(t, ours, merged)
}

func TestMergeTreesBothDeleted(t *testing.T) {
	s := newMemStore()
	v := s.blob(t, "gone\n")
	keep := s.blob(t, "keep\n")

	base := s.tree(t, blobEntry("gone.txt", v), blobEntry("keep.txt", keep))
	ours := s.tree(t, blobEntry("keep.txt", keep))
	theirs := ours

	merged, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	_, payload, err := s.Read(merged)
	require.NoError(t, err)
	tree, err := object.DecodeTree(payload)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)
	require.Equal(t, "keep.txt", tree.Entries[0].Name)
}

func TestMergeTreesModifyDeleteConflict(t *testing.T) {
	s := newMemStore()
	v1 := s.blob(t, "v1\n")
	v2 := s.blob(t, "v2\n")

	base := s.tree(t, blobEntry("f.txt", v1))
	ours := s.tree(t, blobEntry("f.txt", v2))
	theirs := s.tree(t) // deleted on their side

	_, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "f.txt", conflicts[0].Path)
	require.NotNil(t, conflicts[0].Ours)
	require.Nil(t, conflicts[0].Theirs)
}

func TestMergeTreesTextMergeBothModified(t *testing.T) {
	s := newMemStore()
	vBase := s.blob(t, "a\nb\nc\n")
	vOurs := s.blob(t, "A\nb\nc\n")
	vTheirs := s.blob(t, "a\nb\nC\n")

	base := s.tree(t, blobEntry("f.txt", vBase))
	ours := s.tree(t, blobEntry("f.txt", vOurs))
	theirs := s.tree(t, blobEntry("f.txt", vTheirs))

	merged, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	_, payload, err := s.Read(merged)
	require.NoError(t, err)
	tree, err := object.DecodeTree(payload)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)

	_, blob, err := s.Read(tree.Entries[0].Hash)
	require.NoError(t, err)
	require.Equal(t, "A\nb\nC\n", string(blob))
}

func TestMergeTreesTextConflictRecorded(t *testing.T) {
	s := newMemStore()
	vBase := s.blob(t, "a\nb\nc\n")
	vOurs := s.blob(t, "a\nOURS\nc\n")
	vTheirs := s.blob(t, "a\nTHEIRS\nc\n")

	base := s.tree(t, blobEntry("f.txt", vBase))
	ours := s.tree(t, blobEntry("f.txt", vOurs))
	theirs := s.tree(t, blobEntry("f.txt", vTheirs))

	_, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.NotNil(t, conflicts[0].Text)
	require.False(t, conflicts[0].Text.CleanMerge)
	require.Contains(t, conflicts[0].Text.Merged, "<<<<<<<")
}

// Two differing binary blobs conflict outright; no marker text is ever
// spliced into binary bytes.
func TestMergeTreesBinaryConflictHasNoMarkers(t *testing.T) {
	s := newMemStore()
	vBase := s.blob(t, "PK\x00\x01\x02base")
	vOurs := s.blob(t, "PK\x00\x01\x02ours")
	vTheirs := s.blob(t, "PK\x00\x01\x02theirs")

	base := s.tree(t, blobEntry("archive.zip", vBase))
	ours := s.tree(t, blobEntry("archive.zip", vOurs))
	theirs := s.tree(t, blobEntry("archive.zip", vTheirs))

	_, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "archive.zip", conflicts[0].Path)
	require.Nil(t, conflicts[0].Text)
}

func TestMergeTreesRecursesIntoSubtrees(t *testing.T) {
	s := newMemStore()
	v1 := s.blob(t, "one\n")
	v2 := s.blob(t, "two\n")

	subBase := s.tree(t, blobEntry("inner.txt", v1))
	subOurs := s.tree(t, blobEntry("inner.txt", v2))

	dir := func(h plumbing.Hash) object.TreeEntry {
		return object.TreeEntry{Name: "dir", Mode: plumbing.FileModeTree, Hash: h}
	}
	base := s.tree(t, dir(subBase))
	ours := s.tree(t, dir(subOurs))
	theirs := base

	merged, conflicts, err := MergeTrees(s, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Equal(t, ours, merged)
}
