//go:build unix

package journal

import (
	"os"
	"strconv"
	"syscall"
)

// fileIdentity returns "dev:inode" for info, or "" when unavailable.
func fileIdentity(info os.FileInfo) string {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return ""
	}
	return strconv.FormatUint(uint64(st.Dev), 10) + ":" + strconv.FormatUint(st.Ino, 10)
}
