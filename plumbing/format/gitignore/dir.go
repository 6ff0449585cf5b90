package gitignore

import (
	"bytes"
	"io"
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	format "github.com/go-git/git-engine/plumbing/format/config"
)

const (
	commentPrefix = "#"
	excludeFile   = ".git/info/exclude"
	gitignoreFile = ".gitignore"
	gitconfigFile = ".gitconfig"
	coreSection   = "core"
	excludesfileKey = "excludesfile"
)

// systemFile is the path to the system-wide git config; it is a variable
// so that it can be overridden, though nothing in this package does so.
var systemFile = "/etc/gitconfig"

func parseLines(r io.Reader, domain []string) []Pattern {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	var ps []Pattern
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		ps = append(ps, ParsePattern(line, domain))
	}
	return ps
}

func readFileAt(fs billy.Filesystem, p string) ([]Pattern, bool) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	return parseLines(f, nil), true
}

// ReadPatterns walks fs from the directory named by path (nil meaning the
// repository root) collecting every applicable .gitignore and, at the
// root, info/exclude, skipping subdirectories a pattern collected so far
// already excludes -- matching git's own refusal to read ignore files
// inside an already-ignored directory.
func ReadPatterns(fs billy.Filesystem, domainPath []string) ([]Pattern, error) {
	var ps []Pattern

	if len(domainPath) == 0 {
		if lines, ok := readFileAt(fs, excludeFile); ok {
			ps = append(ps, lines...)
		}
	}

	dir := path.Join(domainPath...)
	if f, err := fs.Open(path.Join(dir, gitignoreFile)); err == nil {
		ps = append(ps, parseLines(f, domainPath)...)
		f.Close()
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ps, nil
		}
		return nil, err
	}

	m := NewMatcher(ps)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == ".git" {
			continue
		}
		childPath := append(append([]string{}, domainPath...), e.Name())
		if m.Match(childPath, true) {
			continue
		}
		sub, err := ReadPatterns(fs, childPath)
		if err != nil {
			return nil, err
		}
		ps = append(ps, sub...)
	}
	return ps, nil
}

// LoadGlobalPatterns reads core.excludesfile from the current user's
// ~/.gitconfig, honoring a "~/" or "~user/" prefix on the value.
func LoadGlobalPatterns(fs billy.Filesystem) ([]Pattern, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	return loadExcludesfile(fs, path.Join(home, gitconfigFile), home)
}

// LoadSystemPatterns reads core.excludesfile from the system git config.
func LoadSystemPatterns(fs billy.Filesystem) ([]Pattern, error) {
	return loadExcludesfile(fs, systemFile, "")
}

func loadExcludesfile(fs billy.Filesystem, configPath, home string) ([]Pattern, error) {
	f, err := fs.Open(configPath)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	cfg := format.New()
	if err := format.NewDecoder(bytes.NewReader(raw)).Decode(cfg); err != nil {
		return nil, nil
	}

	excludesfile := cfg.Section(coreSection).GetOption(excludesfileKey)
	if excludesfile == "" {
		return nil, nil
	}
	excludesfile = expandTilde(excludesfile, home)

	ef, err := fs.Open(excludesfile)
	if err != nil {
		return nil, nil
	}
	defer ef.Close()
	return parseLines(ef, nil), nil
}

// expandTilde resolves a leading "~/" or "~username/" to the given home
// directory. A portable engine has no notion of other OS accounts, so
// "~username/" is resolved against the caller's own home exactly like
// "~/", which is sufficient for the single-user repositories this engine
// targets.
func expandTilde(p, home string) string {
	if home == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		return path.Join(home, p[2:])
	}
	rest := p[1:]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return path.Join(home, rest[idx+1:])
	}
	if u, err := user.Current(); err == nil && rest == u.Username {
		return home
	}
	return p
}
