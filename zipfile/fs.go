package zipfile

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

var (
	_ fs.FS        = (*archiveFS)(nil)
	_ fs.StatFS    = (*archiveFS)(nil)
	_ fs.ReadDirFS = (*archiveFS)(nil)
)

// FS returns a read-only fs.FS over the archive contents. The given read
// options (e.g. WithPassword) apply to every file opened through it.
// Directories that exist only implicitly through entry paths are
// synthesized.
func (a *Archive) FS(opts ...ReadOption) fs.FS {
	return &archiveFS{a: a, opts: opts}
}

type archiveFS struct {
	a    *Archive
	opts []ReadOption
}

// Open implements fs.FS. Regular files are fully decoded at open time; the
// returned file reads from the decoded buffer.
func (afs *archiveFS) Open(name string) (fs.File, error) {
	entry, err := afs.getEntry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if entry.isDir {
		return &fsDir{entry: entry, fsys: afs}, nil
	}

	content, err := afs.a.readEntry(entry, afs.opts)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	return &fsFile{entry: entry, r: bytes.NewReader(content)}, nil
}

// Stat implements fs.StatFS.
func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	entry, err := afs.getEntry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return fileInfoAdapter{entry}, nil
}

// ReadDir implements fs.ReadDirFS.
func (afs *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := afs.Open(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

// getEntry resolves an fs path to an archive entry, handling the root,
// explicit directory entries (stored with a trailing slash) and directories
// that exist only as prefixes of entry names.
func (afs *archiveFS) getEntry(name string) (*Entry, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}

	if name == "." {
		return &Entry{name: ".", isDir: true}, nil
	}

	if e, ok := afs.a.byName[name]; ok && !e.isDir {
		return e, nil
	}
	if e, ok := afs.a.byName[name+"/"]; ok {
		return e, nil
	}

	if afs.hasImplicitDir(name) {
		return &Entry{name: name + "/", isDir: true}, nil
	}

	return nil, fs.ErrNotExist
}

func (afs *archiveFS) hasImplicitDir(name string) bool {
	prefix := name + "/"
	for _, e := range afs.a.entries {
		if strings.HasPrefix(e.name, prefix) {
			return true
		}
	}
	return false
}

// fsFile serves a decoded regular file.
type fsFile struct {
	entry *Entry
	r     *bytes.Reader
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fileInfoAdapter{f.entry}, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.r.Read(b) }
func (f *fsFile) Close() error               { return nil }

// fsDir serves a directory entry and lists its immediate children. The child
// list is built once per open handle so repeated ReadDir calls paginate.
type fsDir struct {
	entry    *Entry
	fsys     *archiveFS
	children []fs.DirEntry
	listed   bool
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return fileInfoAdapter{d.entry}, nil }
func (d *fsDir) Close() error               { return nil }
func (d *fsDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.entry.name, Err: fs.ErrInvalid}
}

func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.listed {
		d.children = d.fsys.listChildren(d.entry.name)
		d.listed = true
	}

	if n <= 0 {
		out := d.children
		d.children = nil
		return out, nil
	}
	if len(d.children) == 0 {
		return nil, io.EOF
	}
	if n > len(d.children) {
		n = len(d.children)
	}
	out := d.children[:n]
	d.children = d.children[n:]
	return out, nil
}

// listChildren scans the entry list for a directory's immediate children.
// A child seen only as a path prefix of deeper entries gets a synthesized
// directory info.
func (afs *archiveFS) listChildren(dirPath string) []fs.DirEntry {
	if dirPath == "." {
		dirPath = ""
	}

	seen := make(map[string]bool)
	var children []fs.DirEntry

	for _, e := range afs.a.entries {
		if !strings.HasPrefix(e.name, dirPath) {
			continue
		}

		rel := strings.TrimSuffix(strings.TrimPrefix(e.name, dirPath), "/")
		if rel == "" {
			continue
		}

		parts := strings.SplitN(rel, "/", 2)
		childName := parts[0]

		if seen[childName] {
			continue
		}
		seen[childName] = true

		info := fileInfoAdapter{e}
		if len(parts) > 1 {
			info = fileInfoAdapter{&Entry{name: dirPath + childName + "/", isDir: true}}
		}
		children = append(children, fsDirEntryAdapter{
			name:  childName,
			isDir: len(parts) > 1 || e.isDir,
			info:  info,
		})
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Name() < children[j].Name()
	})
	return children
}

type fileInfoAdapter struct{ e *Entry }

func (i fileInfoAdapter) Name() string { return path.Base(strings.TrimSuffix(i.e.name, "/")) }
func (i fileInfoAdapter) Size() int64  { return i.e.Size() }
func (i fileInfoAdapter) Mode() fs.FileMode {
	if i.e.isDir {
		return fs.ModeDir | 0755
	}
	return 0644
}
func (i fileInfoAdapter) ModTime() time.Time { return i.e.ModTime() }
func (i fileInfoAdapter) IsDir() bool        { return i.e.isDir }
func (i fileInfoAdapter) Sys() interface{}   { return nil }

type fsDirEntryAdapter struct {
	name  string
	isDir bool
	info  fs.FileInfo
}

func (e fsDirEntryAdapter) Name() string { return e.name }
func (e fsDirEntryAdapter) IsDir() bool  { return e.isDir }
func (e fsDirEntryAdapter) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}
func (e fsDirEntryAdapter) Info() (fs.FileInfo, error) { return e.info, nil }
