package store

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// ReadTable reads a table file into memory. Files ending in .xz are
// decompressed.
func ReadTable(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(path), ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "xz %s", path)
		}
		r = xr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// TableName derives a table name from a file path:
// /data/ChrRaces.db2.xz -> ChrRaces.
func TableName(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".xz") {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Checksum is the hex BLAKE3-256 digest of a table file's contents.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
