package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"momentshub/internal/hub"
)

// S3Config configures an S3Store. Endpoint and static keys are optional;
// without keys the default AWS credential chain is used.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store is a hub.ObjectStore over an S3 bucket. Object ETags serve as
// version tokens and preconditions become conditional requests
// (If-Match / If-None-Match), so writes keep their optimistic locking.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
	logger     hub.Logger
}

// NewS3Store loads AWS configuration and creates the store.
func NewS3Store(ctx context.Context, cfg S3Config, logger hub.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreFromClient creates the store over an existing client.
func NewS3StoreFromClient(client *s3.Client, bucket, prefix string, logger hub.Logger) *S3Store {
	if logger == nil {
		logger = hub.NewNopLogger()
	}
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		prefix:     cleanDir(prefix),
		logger:     logger,
	}
}

// Stat returns the object's metadata from a HEAD request.
func (s *S3Store) Stat(ctx context.Context, p string) (hub.ObjectInfo, error) {
	key, p, err := s.key(p)
	if err != nil {
		return hub.ObjectInfo{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return hub.ObjectInfo{}, translateS3Error("HEAD", p, err)
	}
	return hub.ObjectInfo{
		Path:    p,
		Name:    path.Base(p),
		Version: unquoteETag(aws.ToString(out.ETag)),
		Size:    aws.ToInt64(out.ContentLength),
	}, nil
}

// Get downloads the object. The download is pinned to the version seen
// by Stat so concurrent part fetches cannot mix revisions.
func (s *S3Store) Get(ctx context.Context, p string) (*hub.Object, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	key, _, _ := s.key(p)

	buf := manager.NewWriteAtBuffer(make([]byte, 0, info.Size))
	_, err = s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		IfMatch: aws.String(quoteETag(info.Version)),
	})
	if err != nil {
		return nil, translateS3Error("GET", info.Path, err)
	}
	return &hub.Object{ObjectInfo: info, Content: buf.Bytes()}, nil
}

// Put uploads the content read from r under cond.
func (s *S3Store) Put(ctx context.Context, p string, r io.Reader, message string, cond hub.Precondition) (string, error) {
	key, p, err := s.key(p)
	if err != nil {
		return "", err
	}

	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: map[string]string{"message": asciiOnly(message)},
	}
	switch {
	case cond.IsCreate():
		in.IfNoneMatch = aws.String("*")
	case !cond.IsAny():
		in.IfMatch = aws.String(quoteETag(cond.Version()))
	}

	out, err := s.uploader.Upload(ctx, in)
	if err != nil {
		return "", translateS3Error("PUT", p, err)
	}
	version := unquoteETag(aws.ToString(out.ETag))
	s.logger.Info("object written", "path", p, "version", version)
	return version, nil
}

// Delete removes the object; a missing object is a no-op.
func (s *S3Store) Delete(ctx context.Context, p string, _ string) error {
	key, p, err := s.key(p)
	if err != nil {
		return err
	}
	if _, err := s.Stat(ctx, p); err != nil {
		if errors.Is(err, hub.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return translateS3Error("DELETE", p, err)
	}
	s.logger.Info("object deleted", "path", p)
	return nil
}

// List returns the direct children of dir using delimiter listing.
func (s *S3Store) List(ctx context.Context, dir string) ([]hub.Entry, error) {
	dir = cleanDir(dir)
	prefix := s.prefixed(dir)
	if prefix != "" {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	entries := []hub.Entry{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateS3Error("LIST", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, hub.Entry{Name: name, Path: path.Join(dir, name), Kind: hub.KindDir})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			entries = append(entries, hub.Entry{
				Name:    name,
				Path:    path.Join(dir, name),
				Kind:    hub.KindFile,
				Version: unquoteETag(aws.ToString(obj.ETag)),
				Size:    aws.ToInt64(obj.Size),
			})
		}
	}
	return entries, nil
}

// key maps a store path to a bucket key, returning both.
func (s *S3Store) key(p string) (string, string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", "", err
	}
	return s.prefixed(p), p, nil
}

func (s *S3Store) prefixed(p string) string {
	switch {
	case s.prefix == "":
		return p
	case p == "":
		return s.prefix
	default:
		return s.prefix + "/" + p
	}
}

// translateS3Error maps S3 error codes onto the hub taxonomy.
func translateS3Error(op, p string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%s %s: %w", op, p, hub.ErrNotFound)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%s %s: %w", op, p, hub.ErrConflict)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s %s: %w", op, p, hub.ErrUnauthorized)
		}
	}
	return hub.NewTransportError(op, p, 0, "", err)
}

func quoteETag(v string) string { return `"` + v + `"` }

func unquoteETag(v string) string { return strings.Trim(v, `"`) }

// asciiOnly keeps object metadata within what S3 headers accept.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, s)
}

var _ hub.ObjectStore = (*S3Store)(nil)
