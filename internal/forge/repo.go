package forge

import (
	"fmt"
	"strings"
)

// SplitRepo parses an "owner/name" repository reference. It also accepts
// full GitHub URLs (https or ssh) and strips a trailing ".git".
func SplitRepo(ref string) (owner, name string, err error) {
	s := strings.TrimSpace(ref)
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "http://github.com/")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimSuffix(s, ".git")
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository reference %q (want owner/name)", ref)
	}
	return parts[0], parts[1], nil
}
