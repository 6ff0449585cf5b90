// Package config implements the repository configuration model: typed
// access over the raw [section]/[section "sub"] text format,
// plus the worktree > local > global > system precedence merge.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	format "github.com/go-git/git-engine/plumbing/format/config"
	"github.com/go-git/go-billy/v5/osfs"
)

const (
	DefaultFetchRefSpec = "+refs/heads/*:refs/remotes/%s/*"
	DefaultPushRefSpec  = "refs/heads/*:refs/heads/*"

	DefaultPackWindow = uint(10)
	DefaultFileMode   = true
)

var (
	ErrInvalid              = errors.New("config: invalid key in remote or branch")
	ErrRemoteConfigNotFound  = errors.New("config: remote not found")
	ErrRemoteConfigEmptyURL  = errors.New("config: remote has empty URL")
	ErrRemoteConfigEmptyName = errors.New("config: remote has empty name")
)

// Scope selects which configuration file a Config was (or should be)
// loaded from, governing precedence when several are merged:
// worktree > local > global > system.
type Scope int

const (
	LocalScope Scope = iota
	GlobalScope
	SystemScope
	WorktreeScope
)

// Config is the parsed, typed view of a repository's configuration.
type Config struct {
	Core struct {
		IsBare                  bool
		Worktree                string
		CommentChar             string
		RepositoryFormatVersion format.RepositoryFormatVersion
		AutoCRLF                string
		FileMode                bool
	}

	User struct {
		Name  string
		Email string
	}

	Author struct {
		Name  string
		Email string
	}

	Committer struct {
		Name  string
		Email string
	}

	Pack struct {
		Window uint
	}

	Init struct {
		DefaultBranch string
	}

	Remotes  map[string]*RemoteConfig
	Branches map[string]*Branch

	// Raw preserves everything Unmarshal parsed, including keys this
	// type doesn't model, so Marshal never silently drops them.
	Raw *format.Config
}

// NewConfig returns an empty Config with documented defaults applied.
func NewConfig() *Config {
	c := &Config{
		Remotes:  make(map[string]*RemoteConfig),
		Branches: make(map[string]*Branch),
		Raw:      format.New(),
	}
	c.Core.FileMode = DefaultFileMode
	c.Pack.Window = DefaultPackWindow
	return c
}

// Merge folds src into one Config, later entries overriding earlier ones
// field-by-field (zero fields never override), implementing the
// worktree > local > global > system precedence. Pass configs ordered
// from lowest to highest precedence.
func Merge(src ...*Config) *Config {
	final := NewConfig()
	for _, c := range src {
		if c == nil {
			continue
		}
		mergeStruct(reflect.ValueOf(final).Elem(), reflect.ValueOf(c).Elem())
	}
	return final
}

func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		df, sf := dst.Field(i), src.Field(i)
		if !df.CanSet() || sf.IsZero() {
			continue
		}
		switch df.Kind() {
		case reflect.Struct:
			mergeStruct(df, sf)
		case reflect.Map:
			if df.IsNil() {
				df.Set(reflect.MakeMap(df.Type()))
			}
			iter := sf.MapRange()
			for iter.Next() {
				df.SetMapIndex(iter.Key(), iter.Value())
			}
		default:
			df.Set(sf)
		}
	}
}

// ReadConfig parses a config file's entire contents.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := NewConfig()
	if err := c.Unmarshal(b); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig loads the global or system config file, returning an empty
// Config if none exists at that scope. LocalScope must instead be read
// from the repository's own ConfigStorer.
func LoadConfig(scope Scope) (*Config, error) {
	if scope == LocalScope || scope == WorktreeScope {
		return nil, fmt.Errorf("config: %d must be read from the repository's storer", scope)
	}

	for _, file := range Paths(scope) {
		f, err := osfs.Default.Open(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		defer f.Close()
		return ReadConfig(f)
	}
	return NewConfig(), nil
}

// Paths returns the config file locations searched for the given scope,
// in the order git itself checks them.
func Paths(scope Scope) []string {
	var files []string
	switch scope {
	case GlobalScope:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			files = append(files, filepath.Join(xdg, "git/config"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			files = append(files,
				filepath.Join(home, ".gitconfig"),
				filepath.Join(home, ".config/git/config"))
		}
	case SystemScope:
		files = append(files, "/etc/gitconfig")
	}
	return files
}

// Validate checks cross-field invariants and fills in derived defaults
// (e.g. a remote's default fetch refspec).
func (c *Config) Validate() error {
	for name, r := range c.Remotes {
		if r.Name != name {
			return ErrInvalid
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for name, b := range c.Branches {
		if b.Name != name {
			return ErrInvalid
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

const (
	remoteSection  = "remote"
	branchSection  = "branch"
	coreSection    = "core"
	packSection    = "pack"
	userSection    = "user"
	authorSection  = "author"
	committerSection = "committer"
	initSection    = "init"

	fetchKey         = "fetch"
	urlKey           = "url"
	pushurlKey       = "pushurl"
	bareKey          = "bare"
	worktreeKey      = "worktree"
	commentCharKey   = "commentChar"
	windowKey        = "window"
	mergeKey         = "merge"
	rebaseKey        = "rebase"
	nameKey          = "name"
	emailKey         = "email"
	defaultBranchKey = "defaultBranch"
	repoFormatVerKey = "repositoryformatversion"
	mirrorKey        = "mirror"
	autoCRLFKey      = "autocrlf"
	fileModeKey      = "filemode"
)

// Unmarshal parses b (a config file's raw text) into c.
func (c *Config) Unmarshal(b []byte) error {
	c.Raw = format.New()
	if err := format.NewDecoder(bytes.NewReader(b)).Decode(c.Raw); err != nil {
		return err
	}

	c.unmarshalCore()
	c.unmarshalUser()
	c.unmarshalInit()
	if err := c.unmarshalPack(); err != nil {
		return err
	}
	if err := c.unmarshalBranches(); err != nil {
		return err
	}
	return c.unmarshalRemotes()
}

func (c *Config) unmarshalCore() {
	s := c.Raw.Section(coreSection)
	c.Core.IsBare = s.GetOption(bareKey) == "true"
	c.Core.Worktree = s.GetOption(worktreeKey)
	c.Core.CommentChar = s.GetOption(commentCharKey)
	c.Core.AutoCRLF = s.GetOption(autoCRLFKey)
	c.Core.FileMode = s.GetOption(fileModeKey) != "false"
	if s.GetOption(repoFormatVerKey) == string(format.Version1) {
		c.Core.RepositoryFormatVersion = format.Version1
	}
}

func (c *Config) unmarshalUser() {
	s := c.Raw.Section(userSection)
	c.User.Name, c.User.Email = s.GetOption(nameKey), s.GetOption(emailKey)

	s = c.Raw.Section(authorSection)
	c.Author.Name, c.Author.Email = s.GetOption(nameKey), s.GetOption(emailKey)

	s = c.Raw.Section(committerSection)
	c.Committer.Name, c.Committer.Email = s.GetOption(nameKey), s.GetOption(emailKey)
}

func (c *Config) unmarshalInit() {
	c.Init.DefaultBranch = c.Raw.Section(initSection).GetOption(defaultBranchKey)
}

func (c *Config) unmarshalPack() error {
	window := c.Raw.Section(packSection).GetOption(windowKey)
	if window == "" {
		c.Pack.Window = DefaultPackWindow
		return nil
	}
	w, err := strconv.ParseUint(window, 10, 32)
	if err != nil {
		return err
	}
	c.Pack.Window = uint(w)
	return nil
}

func (c *Config) unmarshalRemotes() error {
	s := c.Raw.Section(remoteSection)
	for _, sub := range s.Subsections {
		r := &RemoteConfig{}
		if err := r.unmarshal(sub); err != nil {
			return err
		}
		c.Remotes[r.Name] = r
	}
	return nil
}

func (c *Config) unmarshalBranches() error {
	s := c.Raw.Section(branchSection)
	for _, sub := range s.Subsections {
		b := &Branch{}
		if err := b.unmarshal(sub); err != nil {
			return err
		}
		c.Branches[b.Name] = b
	}
	return nil
}

// Marshal serialises c back to its text representation, preserving
// whatever Raw carried plus every typed field written back into it.
func (c *Config) Marshal() ([]byte, error) {
	if c.Raw == nil {
		c.Raw = format.New()
	}

	c.marshalCore()
	c.marshalUser()
	c.marshalInit()
	c.marshalPack()
	c.marshalRemotes()
	c.marshalBranches()

	var buf bytes.Buffer
	if err := format.NewEncoder(&buf).Encode(c.Raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) marshalCore() {
	s := c.Raw.Section(coreSection)
	s.SetOption(bareKey, strconv.FormatBool(c.Core.IsBare))
	if c.Core.Worktree != "" {
		s.SetOption(worktreeKey, c.Core.Worktree)
	}
	if !c.Core.FileMode {
		s.SetOption(fileModeKey, "false")
	}
	if c.Core.RepositoryFormatVersion != "" {
		s.SetOption(repoFormatVerKey, string(c.Core.RepositoryFormatVersion))
	}
}

func (c *Config) marshalUser() {
	if c.User.Name != "" || c.User.Email != "" {
		s := c.Raw.Section(userSection)
		if c.User.Name != "" {
			s.SetOption(nameKey, c.User.Name)
		}
		if c.User.Email != "" {
			s.SetOption(emailKey, c.User.Email)
		}
	}
}

func (c *Config) marshalInit() {
	if c.Init.DefaultBranch != "" {
		c.Raw.Section(initSection).SetOption(defaultBranchKey, c.Init.DefaultBranch)
	}
}

func (c *Config) marshalPack() {
	if c.Pack.Window != DefaultPackWindow {
		c.Raw.Section(packSection).SetOption(windowKey, strconv.FormatUint(uint64(c.Pack.Window), 10))
	}
}

func (c *Config) marshalRemotes() {
	s := c.Raw.Section(remoteSection)
	for _, r := range c.Remotes {
		r.marshal(s.Subsection(r.Name))
	}
}

func (c *Config) marshalBranches() {
	s := c.Raw.Section(branchSection)
	for _, b := range c.Branches {
		b.marshal(s.Subsection(b.Name))
	}
}

// RemoteConfig holds one "[remote \"name\"]" block.
type RemoteConfig struct {
	Name   string
	URLs   []string
	Mirror bool
	Fetch  []RefSpec

	raw *format.Subsection
}

func (c *RemoteConfig) Validate() error {
	if c.Name == "" {
		return ErrRemoteConfigEmptyName
	}
	if len(c.URLs) == 0 {
		return ErrRemoteConfigEmptyURL
	}
	for _, rs := range c.Fetch {
		if err := rs.Validate(); err != nil {
			return err
		}
	}
	if len(c.Fetch) == 0 {
		c.Fetch = []RefSpec{RefSpec(fmt.Sprintf(DefaultFetchRefSpec, c.Name))}
	}
	return nil
}

func (c *RemoteConfig) unmarshal(s *format.Subsection) error {
	c.raw = s
	var fetch []RefSpec
	for _, f := range s.GetAllOptions(fetchKey) {
		rs := RefSpec(f)
		if err := rs.Validate(); err != nil {
			return err
		}
		fetch = append(fetch, rs)
	}

	c.Name = s.Name
	c.URLs = append([]string(nil), s.GetAllOptions(urlKey)...)
	c.URLs = append(c.URLs, s.GetAllOptions(pushurlKey)...)
	c.Fetch = fetch
	c.Mirror = s.GetOption(mirrorKey) == "true"
	return nil
}

func (c *RemoteConfig) marshal(s *format.Subsection) {
	if len(c.URLs) > 0 {
		s.SetOption(urlKey, c.URLs...)
	}
	if len(c.Fetch) > 0 {
		values := make([]string, len(c.Fetch))
		for i, rs := range c.Fetch {
			values[i] = rs.String()
		}
		s.SetOption(fetchKey, values...)
	}
	if c.Mirror {
		s.SetOption(mirrorKey, "true")
	}
}
