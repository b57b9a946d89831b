// Package runs locates detector output folders. A detector writes each run
// to {base}/{prefix}{N}; the latest run is the one with the largest N.
package runs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/andresmejia3/stitcher/internal/types"
)

// Resolver finds the run folder to reconstruct from.
type Resolver interface {
	ResolveLatest(baseDir string) (string, error)
}

// PrefixResolver matches folders named Prefix followed by a run number.
type PrefixResolver struct {
	Prefix string
}

// ResolveLatest returns the path of the folder in baseDir with the largest
// run number. Run numbers compare numerically, so 10 is later than 9.
func (p PrefixResolver) ResolveLatest(baseDir string) (string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: detection directory %s", types.ErrMissingResource, baseDir)
		}
		return "", err
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(p.Prefix) + `(\d+)$`)
	best, latest := -1, ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > best {
			best, latest = n, e.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w: no %s* run folder in %s", types.ErrMissingResource, p.Prefix, baseDir)
	}
	return filepath.Join(baseDir, latest), nil
}
