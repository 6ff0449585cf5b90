package config

import (
	"errors"

	format "github.com/go-git/git-engine/plumbing/format/config"
)

var (
	ErrBranchEmptyName   = errors.New("config: branch has empty name")
	ErrBranchInvalidMerge = errors.New("config: branch.merge must be a full ref name")
)

// Branch holds one "[branch \"name\"]" block: it records
// which remote and remote-tracking ref a local branch integrates with,
// consulted by fetch/pull/push to resolve the upstream when none is given
// explicitly on the command line.
type Branch struct {
	Name   string
	Remote string
	Merge  string
	Rebase string

	raw *format.Subsection
}

func (b *Branch) Validate() error {
	if b.Name == "" {
		return ErrBranchEmptyName
	}
	if b.Merge != "" && !isFullRefName(b.Merge) {
		return ErrBranchInvalidMerge
	}
	return nil
}

func isFullRefName(s string) bool {
	return len(s) > 5 && s[:5] == "refs/"
}

func (b *Branch) unmarshal(s *format.Subsection) error {
	b.raw = s
	b.Name = s.Name
	b.Remote = s.GetOption("remote")
	b.Merge = s.GetOption(mergeKey)
	b.Rebase = s.GetOption(rebaseKey)
	return b.Validate()
}

func (b *Branch) marshal(s *format.Subsection) {
	if b.Remote != "" {
		s.SetOption("remote", b.Remote)
	}
	if b.Merge != "" {
		s.SetOption(mergeKey, b.Merge)
	}
	if b.Rebase != "" {
		s.SetOption(rebaseKey, b.Rebase)
	}
}
