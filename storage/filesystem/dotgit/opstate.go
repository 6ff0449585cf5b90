package dotgit

import (
	"os"
	"strings"

	"github.com/go-git/git-engine/plumbing"
)

// Operation-state files live directly under the gitdir root: they mark
// an in-progress merge/cherry-pick/revert/rebase and are
// read by status/log to report the repository's current activity.
const (
	mergeHeadFile       = "MERGE_HEAD"
	mergeMsgFile        = "MERGE_MSG"
	mergeModeFile       = "MERGE_MODE"
	cherryPickHeadFile  = "CHERRY_PICK_HEAD"
	revertHeadFile      = "REVERT_HEAD"
	origHeadFile        = "ORIG_HEAD"
	fetchHeadFile       = "FETCH_HEAD"
	rebaseMergeDir      = "rebase-merge"
	sequencerDir        = "sequencer"
)

func (d *DotGit) readHashFile(name string) (plumbing.Hash, bool, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, err
	}
	defer f.Close()

	b, err := readAll(f)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return plumbing.NewHash(strings.TrimSpace(string(b))), true, nil
}

func (d *DotGit) writeFile(name string, content string) error {
	tmp, err := writeTemp(d.fs, ".", []byte(content))
	if err != nil {
		return err
	}
	return d.fs.Rename(tmp, name)
}

func (d *DotGit) removeFile(name string) error {
	err := d.fs.Remove(name)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MergeHead reports the in-progress merge's other parent, if any.
func (d *DotGit) MergeHead() (plumbing.Hash, bool, error) { return d.readHashFile(mergeHeadFile) }
func (d *DotGit) SetMergeHead(h plumbing.Hash) error       { return d.writeFile(mergeHeadFile, h.String()+"\n") }
func (d *DotGit) RemoveMergeHead() error                   { return d.removeFile(mergeHeadFile) }

func (d *DotGit) MergeMsg() (string, error) {
	f, err := d.fs.Open(mergeMsgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()
	b, err := readAll(f)
	return string(b), err
}
func (d *DotGit) SetMergeMsg(msg string) error { return d.writeFile(mergeMsgFile, msg) }
func (d *DotGit) RemoveMergeMsg() error        { return d.removeFile(mergeMsgFile) }

func (d *DotGit) SetMergeMode(mode string) error { return d.writeFile(mergeModeFile, mode+"\n") }
func (d *DotGit) RemoveMergeMode() error         { return d.removeFile(mergeModeFile) }

func (d *DotGit) CherryPickHead() (plumbing.Hash, bool, error) { return d.readHashFile(cherryPickHeadFile) }
func (d *DotGit) SetCherryPickHead(h plumbing.Hash) error      { return d.writeFile(cherryPickHeadFile, h.String()+"\n") }
func (d *DotGit) RemoveCherryPickHead() error                  { return d.removeFile(cherryPickHeadFile) }

func (d *DotGit) RevertHead() (plumbing.Hash, bool, error) { return d.readHashFile(revertHeadFile) }
func (d *DotGit) SetRevertHead(h plumbing.Hash) error      { return d.writeFile(revertHeadFile, h.String()+"\n") }
func (d *DotGit) RemoveRevertHead() error                  { return d.removeFile(revertHeadFile) }

func (d *DotGit) OrigHead() (plumbing.Hash, bool, error) { return d.readHashFile(origHeadFile) }
func (d *DotGit) SetOrigHead(h plumbing.Hash) error      { return d.writeFile(origHeadFile, h.String()+"\n") }

func (d *DotGit) SetFetchHead(content string) error { return d.writeFile(fetchHeadFile, content) }

// IsMergeInProgress reports whether MERGE_HEAD is present.
func (d *DotGit) IsMergeInProgress() (bool, error) {
	_, ok, err := d.MergeHead()
	return ok, err
}

// IsCherryPickInProgress reports whether CHERRY_PICK_HEAD is present.
func (d *DotGit) IsCherryPickInProgress() (bool, error) {
	_, ok, err := d.CherryPickHead()
	return ok, err
}

// IsRebaseInProgress reports whether a rebase-merge or sequencer
// directory exists, covering both the interactive and non-interactive
// rebase backends git exposes.
func (d *DotGit) IsRebaseInProgress() (bool, error) {
	for _, dir := range []string{rebaseMergeDir, sequencerDir} {
		if fi, err := d.fs.Stat(dir); err == nil && fi.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

// --- rebase-merge directory ---

// RebaseTodoLine is one parsed line of rebase-merge/git-rebase-todo.
type RebaseTodoLine struct {
	Action  string
	Hash    plumbing.Hash
	Subject string
}

func (d *DotGit) rebaseFile(name string) string {
	return rebaseMergeDir + "/" + name
}

// InitRebase creates the rebase-merge directory with its onto/head-name/
// orig-head markers and the todo list, mirroring git's rebase bookkeeping.
func (d *DotGit) InitRebase(onto, origHead plumbing.Hash, headName string, todo []RebaseTodoLine) error {
	if err := d.fs.MkdirAll(rebaseMergeDir, 0777); err != nil {
		return err
	}
	if err := d.writeFile(d.rebaseFile("onto"), onto.String()+"\n"); err != nil {
		return err
	}
	if err := d.writeFile(d.rebaseFile("orig-head"), origHead.String()+"\n"); err != nil {
		return err
	}
	if err := d.writeFile(d.rebaseFile("head-name"), headName+"\n"); err != nil {
		return err
	}
	return d.WriteRebaseTodo(todo)
}

// WriteRebaseTodo (re)writes the remaining todo list.
func (d *DotGit) WriteRebaseTodo(todo []RebaseTodoLine) error {
	var b strings.Builder
	for _, l := range todo {
		b.WriteString(l.Action)
		b.WriteByte(' ')
		b.WriteString(l.Hash.String())
		b.WriteByte(' ')
		b.WriteString(l.Subject)
		b.WriteByte('\n')
	}
	return d.writeFile(d.rebaseFile("git-rebase-todo"), b.String())
}

// ReadRebaseTodo parses the remaining todo list, skipping blank lines and
// "#"-prefixed comments, the sequencer file convention.
func (d *DotGit) ReadRebaseTodo() ([]RebaseTodoLine, error) {
	f, err := d.fs.Open(d.rebaseFile("git-rebase-todo"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	raw, err := readAll(f)
	if err != nil {
		return nil, err
	}

	var out []RebaseTodoLine
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			continue
		}
		l := RebaseTodoLine{Action: fields[0], Hash: plumbing.NewHash(fields[1])}
		if len(fields) == 3 {
			l.Subject = fields[2]
		}
		out = append(out, l)
	}
	return out, nil
}

// AbortRebase removes the rebase-merge directory entirely.
func (d *DotGit) AbortRebase() error {
	return d.removeAll(rebaseMergeDir)
}

func (d *DotGit) removeAll(dir string) error {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		full := dir + "/" + e.Name()
		if e.IsDir() {
			if err := d.removeAll(full); err != nil {
				return err
			}
			continue
		}
		if err := d.fs.Remove(full); err != nil {
			return err
		}
	}
	return d.fs.Remove(dir)
}
