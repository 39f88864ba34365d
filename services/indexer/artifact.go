package indexer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Uploader is the publishing collaborator. It receives the finished artifact
// by name and bytes; where it ends up is not this pipeline's business.
type Uploader interface {
	Upload(ctx context.Context, name string, contents io.Reader) error
}

// DirUploader copies the artifact into a directory, the stand-in used for
// local runs and tests.
type DirUploader struct {
	Dir string
}

func (u DirUploader) Upload(ctx context.Context, name string, contents io.Reader) error {
	err := os.MkdirAll(u.Dir, 0755)
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(u.Dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, contents)
	return err
}

// CompressArtifact gzips the database file next to itself and returns the
// compressed path.
func CompressArtifact(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	outPath := path + ".gz"
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	_, err = io.Copy(zw, src)
	if err != nil {
		return "", err
	}
	err = zw.Close()
	if err != nil {
		return "", err
	}
	return outPath, nil
}

// Publish optionally compresses the artifact and hands it to the uploader.
// A nil uploader means the artifact stays where it was written.
func Publish(ctx context.Context, path string, compress bool, uploader Uploader) error {
	if compress {
		compressed, err := CompressArtifact(path)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "artifact compressed", "path", compressed)
		path = compressed
	}
	if uploader == nil {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return uploader.Upload(ctx, filepath.Base(path), f)
}
