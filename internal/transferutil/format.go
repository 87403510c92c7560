// Package transferutil holds small formatting helpers used for progress
// logging; none of it touches the wire protocol.
package transferutil

import "fmt"

var byteUnits = [...]string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count as a human-readable size, e.g.
// "1.50 MB". Values under 1 KB are rendered as a plain integer count.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d %s", n, byteUnits[0])
	}

	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, byteUnits[unit])
}

// FormatSpeed renders a transfer rate using FormatBytes plus a "/s" suffix.
func FormatSpeed(bytesPerSec int64) string {
	return FormatBytes(bytesPerSec) + "/s"
}

// CalculateETA returns the estimated seconds remaining given a byte count
// and a current throughput, or false if speed is zero (no estimate).
func CalculateETA(remainingBytes, speedBytesPerSec int64) (int64, bool) {
	if speedBytesPerSec <= 0 {
		return 0, false
	}
	return remainingBytes / speedBytesPerSec, true
}
