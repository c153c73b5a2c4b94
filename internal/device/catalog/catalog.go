// internal/device/catalog/catalog.go
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/device/lickdetector"
	"github.com/tamzrod/harp-replicator/internal/device/licketysplit"
)

// Kind names used in config files and on the command line.
const (
	KindLickDetector = "lickdetector"
	KindLicketySplit = "licketysplit"
)

var known = map[string]device.Info{
	KindLickDetector: lickdetector.Info,
	KindLicketySplit: licketysplit.Info,
}

// Lookup returns the device type registered under kind (case-insensitive).
func Lookup(kind string) (device.Info, error) {
	info, ok := known[strings.ToLower(kind)]
	if !ok {
		return device.Info{}, fmt.Errorf("catalog: unknown device kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return info, nil
}

// Kinds returns the known kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
