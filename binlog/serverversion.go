package binlog

import (
	"strings"

	hashiversion "github.com/hashicorp/go-version"
)

// legacySlaveEventCutoff is the server version at which MySQL repurposed
// wire code 27 from SLAVE_EVENT to HEARTBEAT_EVENT (spec.md: Open
// question, resolved as a REDESIGN in SPEC_FULL.md 4.3a).
var legacySlaveEventCutoff = hashiversion.Must(hashiversion.NewVersion("5.1.0"))

// decodeHeartbeatOrSlaveEvent resolves the code-27 collision using the
// server version declared by the stream's FORMAT_DESCRIPTION_EVENT. A
// missing or unparseable server version is treated as modern (>=5.1),
// since every server this package targets postdates that release.
func decodeHeartbeatOrSlaveEvent(ctx *LogContext) interface{} {
	if !ctx.haveFde {
		return &HeartbeatEvent{}
	}
	v, err := parseServerVersion(ctx.fde.ServerVersion)
	if err != nil {
		return &HeartbeatEvent{}
	}
	if v.LessThan(legacySlaveEventCutoff) {
		return &SlaveEvent{}
	}
	return &HeartbeatEvent{}
}

// parseServerVersion extracts the leading dotted-number prefix of a
// MySQL server version string (e.g. "8.0.34-log" -> "8.0.34") and parses
// it with hashicorp/go-version, which otherwise rejects suffixes like
// "-log" and "-MariaDB" as invalid.
func parseServerVersion(s string) (*hashiversion.Version, error) {
	i := 0
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	core := strings.TrimRight(s[:i], ".")
	if core == "" {
		core = s
	}
	return hashiversion.NewVersion(core)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
