package transport

import (
	"encoding/base64"
	"regexp"
)

// scpLikeRegexp matches "[user@]host.xz:path/to/repo.git", the scp-like
// syntax git accepts for SSH remotes.
var scpLikeRegexp = regexp.MustCompile(`^(?:([^@]+)@)?([^:/]+):(.+)$`)

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
