package dflat

import (
	"bytes"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// GetGID returns the id of the calling goroutine, for log lines.
func GetGID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// "goroutine 18 [running]: ..."
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return 0
	}
	n, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return n
}

// logger returns a log entry tagged with the home it works on.
func (h *Home) logger() *log.Entry {
	return log.WithField("home", h.Dir)
}
