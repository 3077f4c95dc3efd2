package bridge

import (
	"path/filepath"

	"github.com/google/renameio/v2"
)

// snapshotPerm is the mode of written snapshots, independent of the umask
// and of any file being replaced.
const snapshotPerm = 0o644

// writeSnapshot atomically replaces path with data. The temporary file is
// created next to path so the final rename never crosses filesystems.
func writeSnapshot(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithStaticPermissions(snapshotPerm),
	)
	if err != nil {
		return &OutputWriteFailedError{Path: path, Err: err}
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return &OutputWriteFailedError{Path: path, Err: err}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &OutputWriteFailedError{Path: path, Err: err}
	}
	return nil
}
