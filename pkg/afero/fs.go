// Package afero wraps spf13/afero and adds the ownership primitives and the
// fsync-before-rename write path the model library's Storage Layout needs
// for its atomic-write contract.
package afero

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

type File interface {
	afero.File
}

type Fs interface {
	afero.Fs

	// LOwnership returns the numeric uid and gid of the named file.
	LOwnership(name string) (uid, gid int, err error)

	// Lchown changes the numeric uid and gid of the named file.
	// If the file is a symbolic link, it changes the uid and gid of the link itself.
	// If there is an error, it will be of type *PathError.
	//
	// On Windows, it always returns the syscall.EWINDOWS error, wrapped
	// in *PathError.
	Lchown(name string, uid, gid int) error
}

func TempDir(fs Fs, dir, prefix string) (name string, err error) {
	return afero.TempDir(fs, dir, prefix)
}

func TempFile(fs Fs, dir, prefix string) (f File, err error) {
	return afero.TempFile(fs, dir, prefix)
}

func Walk(fs Fs, root string, walkFn filepath.WalkFunc) error {
	return afero.Walk(fs, root, walkFn)
}

func WriteFile(fs Fs, filename string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(fs, filename, data, perm)
}

func ReadFile(fs Fs, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

func ReadDir(fs Fs, dirname string) ([]os.FileInfo, error) {
	return afero.ReadDir(fs, dirname)
}

// AtomicFileUpdate writes data to destDir/destFile through a temp file and
// rename, skipping the write (and only applying fileMode) when the file
// already holds exactly data.
func AtomicFileUpdate(
	fs afero.Fs,
	destDir string,
	destFile string,
	data []byte,
	fileMode os.FileMode,
	log logging.Interface,
) error {
	destPath := filepath.Join(destDir, destFile)
	oldContents, err := afero.ReadFile(fs, destPath)
	if err == nil && bytes.Equal(oldContents, data) {
		return fs.Chmod(destPath, fileMode)
	}

	log.WithField("destPath", destPath).
		Info("Writing file...")

	if isRenameBugged(fs) {
		log.WithField("fsType", fmt.Sprintf("%T", fs)).
			WithField("destPath", destPath).
			Debug("Renaming files in this fs implementation is bugged. " +
				"Skipping atomic rename and just writing into file directly")

		if err := afero.WriteFile(fs, destPath, data, fileMode); err != nil {
			return fmt.Errorf("error writing into a temp file: %v", err)
		}

		return nil
	}

	// there might have been an error (i.e. os.IsNotExist etc.) or contents are different.
	// we'll try to write new contents anyways, as a best effort
	tmp, err := afero.TempFile(fs, destDir, "."+destFile+"~")
	if err != nil {
		return fmt.Errorf("creating tmp file for atomic write: %v", err)
	}
	defer func() { _ = tmp.Close() }()
	defer func() { _ = fs.Remove(tmp.Name()) }()

	if err := afero.WriteFile(fs, tmp.Name(), data, fileMode); err != nil {
		return fmt.Errorf("error writing into a temp file: %v", err)
	}

	return fs.Rename(tmp.Name(), destPath)
}

// HACK(achebatu): MemMapFs has a bug when renaming files.
// Since we're using it only for tests, it's ok not to do atomic rename.
func isRenameBugged(fs afero.Fs) bool {
	switch fs.(type) {
	case *MemMapFs, *afero.MemMapFs:
		return true
	default:
		return false
	}
}

// Exists returns true and nil error if the given path for a file or directory
// exists.
func Exists(fs afero.Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// AtomicWriteFile writes data to a temp file beside destPath, fsyncs it, and
// renames it onto destPath. The rename is the only observable commit point:
// a crash before it leaves no trace at destPath, a crash after it is already
// durable. Callers needing the fsync contract (canonical model files,
// metadata.json, download tickets) must use this instead of AtomicFileUpdate,
// which is kept for call sites that only care about content-equality skips.
func AtomicWriteFile(fs afero.Fs, destPath string, data []byte, fileMode os.FileMode) error {
	dir := filepath.Dir(destPath)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating tmp file for atomic write: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("writing tmp file %s: %w", tmpName, err)
	}

	if syncer, ok := tmp.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
			return fmt.Errorf("fsyncing tmp file %s: %w", tmpName, err)
		}
	}

	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("closing tmp file %s: %w", tmpName, err)
	}

	if err := fs.Chmod(tmpName, fileMode); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("chmod tmp file %s: %w", tmpName, err)
	}

	if isRenameBugged(fs) {
		// in-memory filesystems used by tests don't implement rename
		// semantics we can rely on; fall back to a direct write.
		_ = fs.Remove(tmpName)
		return afero.WriteFile(fs, destPath, data, fileMode)
	}

	if err := fs.Rename(tmpName, destPath); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, destPath, err)
	}

	return nil
}
