package dflat

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ManifestAlgo is the only digest algorithm manifests record.
const ManifestAlgo = "md5"

// read size for Fingerprint
const hashChunk = 0x1000

// Fingerprint streams the file at path through md5 and returns the
// lowercase hex digest.
func Fingerprint(path string) (digest string, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "fingerprint %s", path)
	}
	defer fh.Close()

	h := md5.New()
	buf := make([]byte, hashChunk)
	_, err = io.CopyBuffer(h, fh, buf)
	if err != nil {
		return "", errors.Wrapf(err, "fingerprint %s", path)
	}
	return bin2hex(h.Sum(nil)), nil
}

func bin2hex(bin []byte) string {
	return hex.EncodeToString(bin)
}

// validDigest reports whether s looks like an md5 hex digest.
func validDigest(s string) bool {
	if len(s) != md5.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
