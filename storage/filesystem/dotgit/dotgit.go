// Package dotgit implements the on-disk gitdir layout: loose
// objects, refs, packed-refs, reflog, and operation-state files, all
// through a billy.Filesystem so the same code runs against any byte-
// addressable file-system provider (file-system capability set).
package dotgit

import (
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	billy "github.com/go-git/go-billy/v5"
)

const (
	objectsPath = "objects"
	packPath    = "objects/pack"
	refsPath    = "refs"

	packedRefsPath = "packed-refs"
	shallowPath    = "shallow"
	indexPath      = "index"
	configPath     = "config"

	packPrefix    = "pack-"
	packExt       = ".pack"
	idxExt        = ".idx"
	packFileSuffix = 40 // length of a hex pack checksum
)

var (
	ErrIsDir          = errors.New("dotgit: expected file, found directory")
	ErrPackfileNotFound = errors.New("dotgit: packfile not found")
	ErrIdxNotFound      = errors.New("dotgit: idx not found")
)

// DotGit represents the `.git` directory (or equivalent bare gitdir) of a
// repository, implemented on top of a billy.Filesystem.
type DotGit struct {
	fs billy.Filesystem
}

// New wraps fs, rooted at the gitdir.
func New(fs billy.Filesystem) *DotGit {
	return &DotGit{fs: fs}
}

func (d *DotGit) Filesystem() billy.Filesystem { return d.fs }

// --- loose objects ---

func objectPath(h plumbing.Hash) string {
	s := h.String()
	return path.Join(objectsPath, s[:2], s[2:])
}

// HasObject reports whether a loose object file exists for h.
func (d *DotGit) HasObject(h plumbing.Hash) (bool, error) {
	_, err := d.fs.Stat(objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadObject returns the raw (still-deflated) bytes of a loose object.
func (d *DotGit) ReadObject(h plumbing.Hash) ([]byte, error) {
	f, err := d.fs.Open(objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.ErrObjectNotFound
		}
		return nil, err
	}
	defer f.Close()
	return readAll(f)
}

// WriteObject atomically writes a loose object's deflated bytes via
// tmp+rename Existing objects are left untouched (a
// rewrite of the same OID is a no-op, since objects are write-once).
func (d *DotGit) WriteObject(h plumbing.Hash, deflated []byte) error {
	if has, err := d.HasObject(h); err != nil {
		return err
	} else if has {
		return nil
	}

	dir := path.Join(objectsPath, h.String()[:2])
	if err := d.fs.MkdirAll(dir, 0777); err != nil {
		return err
	}

	tmp, err := writeTemp(d.fs, dir, deflated)
	if err != nil {
		return err
	}

	return d.fs.Rename(tmp, objectPath(h))
}

// IterLooseObjects lists every loose object's hash.
func (d *DotGit) IterLooseObjects() ([]plumbing.Hash, error) {
	dirs, err := d.fs.ReadDir(objectsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []plumbing.Hash
	for _, dirInfo := range dirs {
		name := dirInfo.Name()
		if !dirInfo.IsDir() || len(name) != 2 || name == "pack" || name == "info" {
			continue
		}
		files, err := d.fs.ReadDir(path.Join(objectsPath, name))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || len(f.Name()) != 38 {
				continue
			}
			h, err := plumbing.FromHex(name + f.Name())
			if err != nil {
				continue
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// FindLooseByPrefix returns every loose OID matching a hex prefix, for
// short-OID expansion.
func (d *DotGit) FindLooseByPrefix(prefix string) ([]plumbing.Hash, error) {
	if len(prefix) < 2 {
		all, err := d.IterLooseObjects()
		if err != nil {
			return nil, err
		}
		var out []plumbing.Hash
		for _, h := range all {
			if strings.HasPrefix(h.String(), prefix) {
				out = append(out, h)
			}
		}
		return out, nil
	}

	dir := prefix[:2]
	files, err := d.fs.ReadDir(path.Join(objectsPath, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	rest := prefix[2:]
	var out []plumbing.Hash
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), rest) {
			continue
		}
		h, err := plumbing.FromHex(dir + f.Name())
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// --- packfiles ---

// PackfileNames returns the base names ("pack-<sha>") of every pack in
// objects/pack, sorted for determinism.
func (d *DotGit) PackfileNames() ([]string, error) {
	files, err := d.fs.ReadDir(packPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if strings.HasSuffix(f.Name(), packExt) {
			base := strings.TrimSuffix(f.Name(), packExt)
			if !seen[base] {
				seen[base] = true
				names = append(names, base)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *DotGit) OpenPackfile(base string) (billy.File, error) {
	return d.fs.Open(path.Join(packPath, base+packExt))
}

func (d *DotGit) OpenPackIdx(base string) (billy.File, error) {
	return d.fs.Open(path.Join(packPath, base+idxExt))
}

// WritePackAndIdx atomically installs a freshly-received pack and its idx,
//.
func (d *DotGit) WritePackAndIdx(base string, packBytes, idxBytes []byte) error {
	if err := d.fs.MkdirAll(packPath, 0777); err != nil {
		return err
	}

	tmpPack, err := writeTemp(d.fs, packPath, packBytes)
	if err != nil {
		return err
	}
	tmpIdx, err := writeTemp(d.fs, packPath, idxBytes)
	if err != nil {
		return err
	}

	if err := d.fs.Rename(tmpPack, path.Join(packPath, base+packExt)); err != nil {
		return err
	}
	return d.fs.Rename(tmpIdx, path.Join(packPath, base+idxExt))
}

// --- helpers ---

func writeTemp(fs billy.Filesystem, dir string, data []byte) (string, error) {
	f, err := fs.TempFile(dir, "tmp_obj_")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func readAll(f billy.File) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}
