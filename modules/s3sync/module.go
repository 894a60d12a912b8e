// Package s3sync provides the "s3-sync" task, which copies files between a
// local workspace and an object-store workspace. The direction follows the
// schemes of the two bound slots: file to s3 uploads, s3 to file downloads.
package s3sync

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
	"github.com/vk/pipegrid/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Config workspace.S3Config

	once   sync.Once
	client *minio.Client
	err    error
}

// Input defines the parameters of the s3-sync task.
type Input struct {
	From string `cty:"from"`
	To   string `cty:"to"`
}

func (m *Module) s3() (*minio.Client, error) {
	m.once.Do(func() {
		m.client, m.err = workspace.NewS3Client(m.Config)
	})
	return m.client, m.err
}

func (m *Module) run(ctx context.Context, inv *task.Invocation) error {
	in := Input{From: "source", To: "target"}
	if err := inv.Decode(&in); err != nil {
		return err
	}
	from, ok := inv.Workspaces[in.From]
	if !ok {
		return fmt.Errorf("task %s: workspace slot %q is not bound", inv.Ref, in.From)
	}
	to, ok := inv.Workspaces[in.To]
	if !ok {
		return fmt.Errorf("task %s: workspace slot %q is not bound", inv.Ref, in.To)
	}

	switch {
	case from.Scheme == workspace.SchemeFile && to.Scheme == workspace.SchemeS3:
		client, err := m.s3()
		if err != nil {
			return err
		}
		return upload(ctx, inv, client, from.Path, to)
	case from.Scheme == workspace.SchemeS3 && to.Scheme == workspace.SchemeFile:
		client, err := m.s3()
		if err != nil {
			return err
		}
		return download(ctx, inv, client, from, to.Path)
	default:
		return fmt.Errorf("task %s: cannot sync %s to %s, one side must be s3 and the other a local directory", inv.Ref, from, to)
	}
}

func upload(ctx context.Context, inv *task.Invocation, client *minio.Client, dir string, dst workspace.Location) error {
	logger := ctxlog.FromContext(ctx).With("bucket", dst.Bucket)
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := objectKey(dst.Path, rel)
		info, err := client.FPutObject(ctx, dst.Bucket, key, p, minio.PutObjectOptions{ContentType: contentType(p)})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}
		logger.Debug("Uploaded object", "key", key, "size", info.Size)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	inv.Progressf("uploaded %d file(s) to %s", count, dst)
	return nil
}

func download(ctx context.Context, inv *task.Invocation, client *minio.Client, src workspace.Location, dir string) error {
	logger := ctxlog.FromContext(ctx).With("bucket", src.Bucket)
	prefix := strings.TrimSuffix(src.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	// Stops the listing goroutine when the loop returns early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	count := 0
	for obj := range client.ListObjects(ctx, src.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("listing %s: %w", src, obj.Err)
		}
		rel, ok := localPath(prefix, obj.Key)
		if !ok {
			logger.Warn("Skipping object outside the workspace", "key", obj.Key)
			continue
		}
		if err := client.FGetObject(ctx, src.Bucket, obj.Key, filepath.Join(dir, rel), minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("downloading %s: %w", obj.Key, err)
		}
		count++
	}
	inv.Progressf("downloaded %d file(s) from %s", count, src)
	return nil
}

// objectKey joins a key prefix and a relative file path with forward slashes.
func objectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// localPath maps an object key under prefix to a relative file path. Keys
// that would escape the target directory are rejected.
func localPath(prefix, key string) (string, bool) {
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" || strings.HasSuffix(rel, "/") {
		return "", false
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", false
	}
	return local, true
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Register registers the task with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("s3-sync", "1.0.0", m.run)
}
