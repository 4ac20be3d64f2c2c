package logfile

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/natsclient"
)

// Downloader hands a finished file to its destination.
type Downloader interface {
	Download(ctx context.Context, name string, content []byte) error
}

// DownloaderFunc adapts a function to Downloader
type DownloaderFunc func(ctx context.Context, name string, content []byte) error

// Download calls f
func (f DownloaderFunc) Download(ctx context.Context, name string, content []byte) error {
	return f(ctx, name, content)
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return errors.WrapInvalid(errors.ErrInvalidData, "logfile", "Download", "file name "+name)
	}
	return nil
}

// DirectoryDownloader writes files into a local directory. Each file is
// written to a temporary name and renamed, so readers never see a partial
// file.
type DirectoryDownloader struct {
	dir string
}

// NewDirectoryDownloader creates dir if needed.
func NewDirectoryDownloader(dir string) (*DirectoryDownloader, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "DirectoryDownloader", "New", "directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "DirectoryDownloader", "New", "create output directory")
	}
	return &DirectoryDownloader{dir: dir}, nil
}

// Dir returns the target directory
func (d *DirectoryDownloader) Dir() string {
	return d.dir
}

// Download replaces dir/name with content.
func (d *DirectoryDownloader) Download(ctx context.Context, name string, content []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "write "+name)
	}

	tmp, err := os.CreateTemp(d.dir, "."+name+".tmp-*")
	if err != nil {
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "write "+name)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "sync "+name)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "close "+name)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "chmod "+name)
	}
	if err := os.Rename(tmpName, filepath.Join(d.dir, name)); err != nil {
		cleanup()
		return errors.WrapTransient(err, "DirectoryDownloader", "Download", "rename "+name)
	}
	return nil
}

// ObjectPutter is the part of jetstream.ObjectStore used for uploads.
type ObjectPutter interface {
	Put(ctx context.Context, meta jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
}

// ObjectStoreDownloader stores files in a JetStream object store bucket,
// one object per file name. A later file with the same name replaces the
// earlier one.
type ObjectStoreDownloader struct {
	store  ObjectPutter
	bucket string
}

// NewObjectStoreDownloader opens or creates bucket through client.
func NewObjectStoreDownloader(ctx context.Context, client *natsclient.Client, bucket string) (*ObjectStoreDownloader, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "ObjectStoreDownloader", "New", "NATS client required")
	}
	store, err := client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "debugtel log files and exports",
	})
	if err != nil {
		return nil, err
	}
	return NewObjectStoreDownloaderFor(store, bucket), nil
}

// NewObjectStoreDownloaderFor wraps an existing store.
func NewObjectStoreDownloaderFor(store ObjectPutter, bucket string) *ObjectStoreDownloader {
	return &ObjectStoreDownloader{store: store, bucket: bucket}
}

// Download puts content under name.
func (o *ObjectStoreDownloader) Download(ctx context.Context, name string, content []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	contentType := "text/plain; charset=utf-8"
	if strings.HasSuffix(name, ".json") {
		contentType = "application/json"
	}
	_, err := o.store.Put(ctx, jetstream.ObjectMeta{
		Name:     name,
		Metadata: map[string]string{"content-type": contentType},
	}, bytes.NewReader(content))
	if err != nil {
		return errors.WrapTransient(err, "ObjectStoreDownloader", "Download", "put "+name+" into "+o.bucket)
	}
	return nil
}
