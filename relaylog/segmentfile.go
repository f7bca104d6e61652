package relaylog

import (
	"fmt"
	"strconv"
	"strings"
)

// segmentFilePrefix and segmentFileSuffix delimit a segment file's name:
// rlog-{version}-{id}-{first_index}.log (spec.md 4.7).
const (
	segmentFilePrefix = "rlog"
	segmentFileSuffix = ".log"
)

func segmentFileName(version, id uint32, firstIndex uint64) string {
	return fmt.Sprintf("%s-%d-%d-%d%s", segmentFilePrefix, version, id, firstIndex, segmentFileSuffix)
}

// isSegmentFile reports whether name has the shape of a segment file name.
// It does not open the file or check its header.
func isSegmentFile(name string) bool {
	_, _, _, err := parseSegmentFileName(name)
	return err == nil
}

// parseSegmentFileName splits rlog-{version}-{id}-{first_index}.log into
// its three numeric components. All three must be present and nonzero;
// mysql-bin.000001-style names and anything else never match.
func parseSegmentFileName(name string) (version, id uint32, firstIndex uint64, err error) {
	if !strings.HasPrefix(name, segmentFilePrefix) || !strings.HasSuffix(name, segmentFileSuffix) {
		return 0, 0, 0, fmt.Errorf("relaylog: %q is not a segment file name", name)
	}
	stem := strings.TrimSuffix(name, segmentFileSuffix)
	parts := strings.Split(stem, "-")
	if len(parts) != 4 {
		return 0, 0, 0, fmt.Errorf("relaylog: %q does not split into four parts", name)
	}
	v, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("relaylog: %q has invalid version: %w", name, err)
	}
	i, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("relaylog: %q has invalid segment id: %w", name, err)
	}
	fi, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("relaylog: %q has invalid first index: %w", name, err)
	}
	if v == 0 || i == 0 || fi == 0 {
		return 0, 0, 0, fmt.Errorf("relaylog: %q has a zero-valued component", name)
	}
	return uint32(v), uint32(i), fi, nil
}
