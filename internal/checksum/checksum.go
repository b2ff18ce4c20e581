// Package checksum computes content version tokens.
package checksum

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/hex"
	"strconv"
)

// BlobSHA returns the git blob object id of data, the same token the
// GitHub contents API reports as "sha" for a file.
func BlobSHA(data []byte) string {
	h := sha1.New() //nolint:gosec // git object ids are sha1
	h.Write([]byte("blob " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
