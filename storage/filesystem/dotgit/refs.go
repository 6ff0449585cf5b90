package dotgit

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/git-engine/plumbing"
)

// RefDirectoryConflict is returned when a ref write would collide with an
// existing ref acting as a directory prefix, or vice versa (e.g. creating
// "refs/heads/foo/bar" when "refs/heads/foo" already exists).
type RefDirectoryConflict struct {
	Ref plumbing.ReferenceName
}

func (e *RefDirectoryConflict) Error() string {
	return fmt.Sprintf("dotgit: %q conflicts with an existing ref or directory", e.Ref)
}

// Ref resolves name to its stored Reference, checking loose refs first and
// then packed-refs.
func (d *DotGit) Ref(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	if r, err := d.readLooseRef(name); err == nil {
		return r, nil
	} else if err != plumbing.ErrReferenceNotFound {
		return nil, err
	}

	refs, err := d.readPackedRefs()
	if err != nil {
		return nil, err
	}
	if r, ok := refs[name]; ok {
		return r, nil
	}
	return nil, plumbing.ErrReferenceNotFound
}

func (d *DotGit) readLooseRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	f, err := d.fs.Open(refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.ErrReferenceNotFound
		}
		return nil, err
	}
	defer f.Close()

	b, err := readAll(f)
	if err != nil {
		return nil, err
	}
	return plumbing.NewReferenceFromStrings(string(name), strings.TrimSpace(string(b))), nil
}

func refPath(name plumbing.ReferenceName) string {
	return path.Clean(name.String())
}

// SetRef performs a compare-and-set write of name to new, failing if the
// current value does not equal old (when old is non-nil): a CAS write only
// succeeds if the observed old value matches the expected one. Implemented
// as compare-then-rename, without depending on billy's optional locking
// capability, which not every file-system provider offers.
func (d *DotGit) SetRef(r, old *plumbing.Reference) error {
	name := r.Name()

	if err := d.checkRefDirConflict(name); err != nil {
		return err
	}

	if old != nil {
		current, err := d.Ref(name)
		if err != nil && err != plumbing.ErrReferenceNotFound {
			return err
		}
		if err == plumbing.ErrReferenceNotFound {
			if old.Hash() != plumbing.ZeroHash {
				return plumbing.ErrReferenceHasChanged
			}
		} else if current.String() != old.String() {
			return plumbing.ErrReferenceHasChanged
		}
	}

	dir := path.Dir(refPath(name))
	if dir != "." {
		if err := d.fs.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}

	content := []byte(r.Strings()[1] + "\n")
	tmp, err := writeTemp(d.fs, refsPath, content)
	if err != nil {
		return err
	}
	return d.fs.Rename(tmp, refPath(name))
}

// checkRefDirConflict rejects a ref whose path would shadow, or be
// shadowed by, an existing directory of loose refs.
func (d *DotGit) checkRefDirConflict(name plumbing.ReferenceName) error {
	p := refPath(name)
	if fi, err := d.fs.Stat(p); err == nil && fi.IsDir() {
		return &RefDirectoryConflict{Ref: name}
	}

	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		if fi, err := d.fs.Stat(prefix); err == nil && !fi.IsDir() {
			return &RefDirectoryConflict{Ref: name}
		}
	}
	return nil
}

// RemoveRef deletes a ref: its loose file, plus any packed entry under
// the same name (lookups fall back to packed-refs, so a stale packed line
// would resurrect the ref), rewriting packed-refs atomically.
func (d *DotGit) RemoveRef(name plumbing.ReferenceName) error {
	err := d.fs.Remove(refPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return d.removePackedRef(name)
}

// removePackedRef rewrites packed-refs without name (and its peeled line).
// A missing packed-refs file, or one not mentioning name, is left alone.
func (d *DotGit) removePackedRef(name plumbing.ReferenceName) error {
	f, err := d.fs.Open(packedRefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	raw, err := readAll(f)
	f.Close()
	if err != nil {
		return err
	}

	var b strings.Builder
	found := false
	skipPeeled := false
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "^") {
			if skipPeeled {
				skipPeeled = false
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		skipPeeled = false
		parts := strings.SplitN(line, " ", 2)
		if len(parts) == 2 && plumbing.ReferenceName(parts[1]) == name {
			found = true
			skipPeeled = true
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !found {
		return nil
	}

	tmp, err := writeTemp(d.fs, ".", []byte(b.String()))
	if err != nil {
		return err
	}
	return d.fs.Rename(tmp, packedRefsPath)
}

// IterLooseRefs walks refs/ (excluding packed-refs itself) collecting every
// loose reference found.
func (d *DotGit) IterLooseRefs() ([]*plumbing.Reference, error) {
	var out []*plumbing.Reference
	err := d.walkRefs(refsPath, &out)
	if err != nil {
		return nil, err
	}

	if fi, err := d.fs.Stat("HEAD"); err == nil && !fi.IsDir() {
		if r, err := d.readLooseRef(plumbing.HEAD); err == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *DotGit) walkRefs(dir string, out *[]*plumbing.Reference) error {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		full := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := d.walkRefs(full, out); err != nil {
				return err
			}
			continue
		}
		r, err := d.readLooseRef(plumbing.ReferenceName(full))
		if err != nil {
			continue
		}
		*out = append(*out, r)
	}
	return nil
}

// --- packed-refs ---

// readPackedRefs parses packed-refs into a name -> Reference map. Peeled
// ("^<oid>") lines that annotate the preceding tag are tracked separately
// and exposed through PackedRefs.
func (d *DotGit) readPackedRefs() (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	refs, _, err := d.readPackedRefsWithPeeled()
	return refs, err
}

func (d *DotGit) readPackedRefsWithPeeled() (map[plumbing.ReferenceName]*plumbing.Reference, map[plumbing.ReferenceName]plumbing.Hash, error) {
	refs := make(map[plumbing.ReferenceName]*plumbing.Reference)
	peeled := make(map[plumbing.ReferenceName]plumbing.Hash)

	f, err := d.fs.Open(packedRefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return refs, peeled, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	raw, err := readAll(f)
	if err != nil {
		return nil, nil, err
	}

	var lastName plumbing.ReferenceName
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "^") {
			if lastName != "" {
				peeled[lastName] = plumbing.NewHash(line[1:])
			}
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		name := plumbing.ReferenceName(parts[1])
		refs[name] = plumbing.NewHashReference(name, plumbing.NewHash(parts[0]))
		lastName = name
	}
	return refs, peeled, scanner.Err()
}

// PackedRefs returns every ref recorded in packed-refs, plus the peeled
// (dereferenced) target of any annotated tags among them.
func (d *DotGit) PackedRefs() ([]*plumbing.Reference, map[plumbing.ReferenceName]plumbing.Hash, error) {
	refs, peeled, err := d.readPackedRefsWithPeeled()
	if err != nil {
		return nil, nil, err
	}
	out := make([]*plumbing.Reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, r)
	}
	return out, peeled, nil
}

// PackRefs folds every loose ref into packed-refs and removes the loose
// files, the on-disk analogue of `git pack-refs --all`. peel, when
// non-nil, is called to find the dereferenced commit OID of an annotated
// tag, so it can be recorded as a "^<oid>" peeled line immediately after
// its tag's entry (packed-refs' only ordering requirement).
func (d *DotGit) PackRefs(peel func(plumbing.Hash) (plumbing.Hash, bool)) error {
	loose, err := d.IterLooseRefs()
	if err != nil {
		return err
	}
	existing, existingPeeled, err := d.readPackedRefsWithPeeled()
	if err != nil {
		return err
	}

	merged := make(map[plumbing.ReferenceName]*plumbing.Reference)
	for n, r := range existing {
		merged[n] = r
	}
	for _, r := range loose {
		if r.Type() != plumbing.HashReference || r.Name() == plumbing.HEAD {
			continue
		}
		merged[r.Name()] = r
	}

	names := make([]plumbing.ReferenceName, 0, len(merged))
	for n := range merged {
		names = append(names, n)
	}
	sortRefNames(names)

	var b strings.Builder
	b.WriteString("# pack-refs with: peeled fully-peeled sorted\n")
	for _, n := range names {
		r := merged[n]
		fmt.Fprintf(&b, "%s %s\n", r.Hash().String(), n)
		if peeled, ok := existingPeeled[n]; ok {
			fmt.Fprintf(&b, "^%s\n", peeled.String())
		} else if n.IsTag() && peel != nil {
			if target, ok := peel(r.Hash()); ok {
				fmt.Fprintf(&b, "^%s\n", target.String())
			}
		}
	}

	tmp, err := writeTemp(d.fs, ".", []byte(b.String()))
	if err != nil {
		return err
	}
	if err := d.fs.Rename(tmp, packedRefsPath); err != nil {
		return err
	}

	// Remove only the loose files; the entries now live in packed-refs.
	for _, r := range loose {
		if r.Type() == plumbing.HashReference && r.Name() != plumbing.HEAD {
			if err := d.fs.Remove(refPath(r.Name())); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func sortRefNames(names []plumbing.ReferenceName) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}
