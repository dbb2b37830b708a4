// Package s3 implements core.Backend over an S3-compatible object store,
// giving the harness a genuine object-store example backend alongside its
// POSIX and in-memory ones. An S3 bucket has no real directories, so the
// MetadataBackend tree operations (mkdir/rmdir/rename) are NotSupported;
// a file's content is staged in a local buffer between open and close and
// moved in one shot via PutObject/GetObject, since S3 has no partial-write
// primitive analogous to pwrite.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dfsbench/dfsbench/core"
)

// Backend is the S3 core.Backend implementation.
type Backend struct {
	core.UnimplementedBackend

	client *s3.Client
	bucket string

	mu        sync.Mutex
	completed []completedXfer
}

type completedXfer struct {
	result   core.XferResult
	callback core.XferCallback
}

type handleState struct {
	key     string
	mu      sync.Mutex
	buf     []byte
	dirty   bool
	forRead bool
}

// New creates an S3 backend; Configure must supply the bucket name before
// any operation runs.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "s3" }

func (b *Backend) Configure(opts *core.OptionBundle) error {
	if opts == nil {
		return core.NewError("configure", core.CodeInvalidArgument, "s3 backend requires options.bucket")
	}
	bucket, ok := opts.Get("bucket")
	if !ok || bucket == "" {
		return core.NewError("configure", core.CodeInvalidArgument, "s3 backend requires options.bucket")
	}
	b.bucket = bucket

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return core.Wrap("configure", err)
	}
	if endpoint, ok := opts.Get("endpoint"); ok && endpoint != "" {
		b.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	} else {
		b.client = s3.NewFromConfig(cfg)
	}
	return nil
}

// key strips the leading slash a Backend Contract path carries so it reads
// as a normal S3 object key.
func key(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (b *Backend) Create(path string, _ core.OpenFlag) (*core.Handle, error) {
	return core.NewHandle(b.Name(), &handleState{key: key(path)}), nil
}

func (b *Backend) Open(path string, _ core.OpenFlag) (*core.Handle, error) {
	k := key(path)
	out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, core.NewError("open", core.CodeNotFound, k)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, core.Wrap("open", err)
	}
	return core.NewHandle(b.Name(), &handleState{key: k, buf: data, forRead: true}), nil
}

// Close flushes any staged write to a PutObject call.
func (b *Backend) Close(h *core.Handle) error {
	hs := h.Inner().(*handleState)
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if !hs.dirty {
		return nil
	}
	_, err := b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(hs.key),
		Body:   bytes.NewReader(hs.buf),
	})
	if err != nil {
		return core.Wrap("close", err)
	}
	hs.dirty = false
	return nil
}

func (b *Backend) Delete(path string) error {
	_, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return core.Wrap("delete", err)
	}
	return nil
}

// Fsync forces the staged buffer out early, same as Close, without
// releasing the handle.
func (b *Backend) Fsync(h *core.Handle) error {
	return b.Close(h)
}

func (b *Backend) GetFileSize(path string) (int64, error) {
	out, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return 0, core.NewError("get_file_size", core.CodeNotFound, path)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (b *Backend) Access(path string, _ int) (bool, error) {
	_, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	return err == nil, nil
}

func (b *Backend) Stat(path string) (core.StatResult, error) {
	out, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return core.StatResult{}, core.NewError("stat", core.CodeNotFound, path)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	result := core.StatResult{Size: size}
	if out.LastModified != nil {
		result.Mtime = out.LastModified.Unix()
	}
	return result, nil
}

// XferSync reads/writes the handle's local staging buffer; nothing moves
// over the wire until Close/Fsync flushes a write, since S3 has no partial
// object-write API.
func (b *Backend) XferSync(h *core.Handle, dir core.XferDir, buf []byte, offset int64) (int64, error) {
	hs := h.Inner().(*handleState)
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if dir == core.Write {
		end := offset + int64(len(buf))
		if end > int64(len(hs.buf)) {
			grown := make([]byte, end)
			copy(grown, hs.buf)
			hs.buf = grown
		}
		copy(hs.buf[offset:], buf)
		hs.dirty = true
		return int64(len(buf)), nil
	}

	if offset >= int64(len(hs.buf)) {
		return 0, nil
	}
	n := copy(buf, hs.buf[offset:])
	return int64(n), nil
}

func (b *Backend) XferSubmit(h *core.Handle, dir core.XferDir, buf []byte, offset int64, userData any, callback core.XferCallback) (core.Token, error) {
	n, err := b.XferSync(h, dir, buf, offset)
	tok := core.NextToken()
	b.mu.Lock()
	b.completed = append(b.completed, completedXfer{
		result:   core.XferResult{Token: tok, BytesTransferred: n, Err: err, UserData: userData},
		callback: callback,
	})
	b.mu.Unlock()
	return tok, nil
}

func (b *Backend) Poll(max int) (int, error) {
	b.mu.Lock()
	n := len(b.completed)
	if n > max {
		n = max
	}
	batch := b.completed[:n]
	b.completed = b.completed[n:]
	b.mu.Unlock()
	for _, c := range batch {
		c.callback(c.result)
	}
	return len(batch), nil
}

func (b *Backend) Cancel(core.Token) error {
	return core.NewError("cancel", core.CodeNotFound, "no such pending transfer")
}
