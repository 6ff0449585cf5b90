package dotgit

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-git/git-engine/plumbing"
)

// ReflogEntry is one line of a reference's log:
// "<old-oid> SP <new-oid> SP <ident> TAB <message>".
type ReflogEntry struct {
	Old     plumbing.Hash
	New     plumbing.Hash
	Name    string
	Email   string
	When    int64
	TZ      string
	Message string
}

func reflogPath(name plumbing.ReferenceName) string {
	return path.Join("logs", path.Clean(name.String()))
}

// AppendReflog appends e to name's log, creating the log and its parent
// directories on first use.
func (d *DotGit) AppendReflog(name plumbing.ReferenceName, e ReflogEntry) error {
	p := reflogPath(name)
	dir := path.Dir(p)
	if err := d.fs.MkdirAll(dir, 0777); err != nil {
		return err
	}

	f, err := d.fs.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %s <%s> %d %s\t%s\n",
		e.Old.String(), e.New.String(), e.Name, e.Email, e.When, e.TZ, e.Message)
	_, err = f.Write([]byte(line))
	return err
}

// Reflog returns every entry logged for name, oldest first.
func (d *DotGit) Reflog(name plumbing.ReferenceName) ([]*ReflogEntry, error) {
	f, err := d.fs.Open(reflogPath(name))
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

	var out []*ReflogEntry
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		e, err := parseReflogLine(scanner.Text())
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

func parseReflogLine(line string) (*ReflogEntry, error) {
	tabIdx := strings.IndexByte(line, '\t')
	if tabIdx < 0 {
		return nil, fmt.Errorf("dotgit: malformed reflog line %q", line)
	}
	head, message := line[:tabIdx], line[tabIdx+1:]

	fields := strings.SplitN(head, " ", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("dotgit: malformed reflog line %q", line)
	}

	e := &ReflogEntry{
		Old:     plumbing.NewHash(fields[0]),
		New:     plumbing.NewHash(fields[1]),
		Message: message,
	}

	identOpen := strings.IndexByte(fields[2], '<')
	identClose := strings.IndexByte(fields[2], '>')
	if identOpen < 0 || identClose < 0 {
		return e, nil
	}
	e.Name = strings.TrimSpace(fields[2][:identOpen])
	e.Email = fields[2][identOpen+1 : identClose]

	rest := strings.TrimSpace(fields[2][identClose+1:])
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) == 2 {
		if ts, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
			e.When = ts
		}
		e.TZ = parts[1]
	}
	return e, nil
}
