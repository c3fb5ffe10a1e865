package archive

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/model"
)

// Sum reads the archive at path once and returns its MD5 and SHA-256
// digests, base64 encoded.
func Sum(path string) (model.Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Checksum{}, apperr.IO("checksum", err)
	}
	defer f.Close()

	return SumReader(f)
}

// SumReader digests r until EOF. A read error discards both digests.
func SumReader(r io.Reader) (model.Checksum, error) {
	md5Hash := md5.New()
	sha256Hash := sha256.New()

	if _, err := io.Copy(io.MultiWriter(md5Hash, sha256Hash), r); err != nil {
		return model.Checksum{}, apperr.IO("checksum", err)
	}

	return model.Checksum{
		MD5:    base64.StdEncoding.EncodeToString(md5Hash.Sum(nil)),
		SHA256: base64.StdEncoding.EncodeToString(sha256Hash.Sum(nil)),
	}, nil
}
