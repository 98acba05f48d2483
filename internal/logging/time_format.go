package logging

import "time"

// Millisecond precision keeps client and daemon lines from a single
// invocation ordered when both write to the same file.
const logTimestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}
