// Package navigation builds links that stay inside the current restaurant, branch and table.
package navigation

import (
	"net/url"
	"strconv"
	"strings"

	"xquisito-tap/internal/domain"
)

// Scoped rewrites a relative path into /{restaurantId}/{branchNumber}/{path}?table=N.
// Existing query parameters and fragments are kept. Absolute URLs (with a scheme or
// a host) and paths that already carry the scope prefix only get the table added.
func Scoped(scope domain.Scope, path string) string {
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return path
	}

	prefix := "/" + strconv.Itoa(scope.RestaurantID) + "/" + strconv.Itoa(scope.BranchNumber)
	p := u.Path
	if p != prefix && !strings.HasPrefix(p, prefix+"/") {
		rest := strings.TrimPrefix(p, "/")
		if rest == "" {
			p = prefix
		} else {
			p = prefix + "/" + rest
		}
	}
	u.Path = p

	if scope.TableNumber != "" {
		q := u.Query()
		q.Set("table", scope.TableNumber)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Unscoped strips the scope prefix from a path, returning the remainder.
func Unscoped(scope domain.Scope, path string) string {
	prefix := "/" + strconv.Itoa(scope.RestaurantID) + "/" + strconv.Itoa(scope.BranchNumber)
	if path == prefix {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, prefix+"/"); ok {
		return "/" + rest
	}
	return path
}
