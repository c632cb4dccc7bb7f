package minio

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ObjectKey maps a path relative to the upload root onto an object key
func (c *Client) ObjectKey(relPath string) string {
	return objectKey(c.config.Prefix, relPath)
}

func objectKey(prefix, relPath string) string {
	rel := strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(relPath, "\\", "/")), "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// PutObject uploads a mirrored copy of a local file
func (c *Client) PutObject(ctx context.Context, relPath string, reader io.Reader, size int64, contentType string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if relPath == "" {
		return WrapError("PutObject", ErrInvalidObjectName, c.config.Bucket, relPath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	key := c.ObjectKey(relPath)
	info, err := c.client.PutObject(ctx, c.config.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return WrapError("PutObject", err, c.config.Bucket, key)
	}

	c.logger.Debug("object mirrored",
		zap.String("bucket", c.config.Bucket),
		zap.String("object", key),
		zap.Int64("size", info.Size),
	)
	return nil
}

// RemoveObject removes a mirrored copy; a missing object is not an error
func (c *Client) RemoveObject(ctx context.Context, relPath string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if relPath == "" {
		return WrapError("RemoveObject", ErrInvalidObjectName, c.config.Bucket, relPath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	key := c.ObjectKey(relPath)
	if err := c.client.RemoveObject(ctx, c.config.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return WrapError("RemoveObject", err, c.config.Bucket, key)
	}

	c.logger.Debug("mirrored object removed",
		zap.String("bucket", c.config.Bucket),
		zap.String("object", key),
	)
	return nil
}
