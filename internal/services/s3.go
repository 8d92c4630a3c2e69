// S3 bucket listing [FeedService] implementation
package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

var (
	videoExts  = map[string]bool{".mp4": true, ".m3u8": true, ".webm": true, ".mov": true}
	posterExts = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// S3API is the subset of the S3 client the feed needs. [*s3.S3] satisfies it.
type S3API interface {
	ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
	GetObjectRequest(input *s3.GetObjectInput) (*request.Request, *s3.GetObjectOutput)
}

// S3Config locates the bucket and controls URL signing.
type S3Config struct {
	Bucket     string
	Prefix     string
	Region     string
	PresignTTL time.Duration // zero yields plain s3:// URIs
	PageSize   int
}

// S3Feed lists videos under a bucket prefix, ordered by key.
//
// The listing is taken once and cached; NextPage serves later pages from it.
type S3Feed struct {
	client S3API
	cfg    S3Config
	logger *log.Logger

	mu      sync.Mutex
	listing []s3Object
	listed  bool
}

type s3Object struct {
	key    string
	poster string
}

// NewS3Client creates an S3 client for region. Credentials come from the static
// key pair when given and from the default AWS chain otherwise.
func NewS3Client(region, accessKey, secretKey string) (*s3.S3, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if accessKey != "" && secretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

func NewS3Feed(client S3API, cfg S3Config, logger *log.Logger) *S3Feed {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &S3Feed{client: client, cfg: cfg, logger: shared.WithLogger(logger, "component", "s3feed")}
}

// Name returns the provider name.
func (f *S3Feed) Name() string {
	return "s3"
}

// GetFeedItems lists the bucket afresh and returns the first page.
func (f *S3Feed) GetFeedItems(ctx context.Context) ([]models.FeedItem, error) {
	f.mu.Lock()
	f.listed = false
	f.mu.Unlock()
	return f.NextPage(ctx, 0, f.cfg.PageSize)
}

// NextPage returns limit items starting at offset.
func (f *S3Feed) NextPage(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", shared.ErrInvalidArgument, offset, limit)
	}

	objects, err := f.objects(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(objects) {
		return nil, nil
	}

	end := min(offset+limit, len(objects))
	items := make([]models.FeedItem, 0, end-offset)
	for i, obj := range objects[offset:end] {
		media, err := f.uri(obj.key)
		if err != nil {
			return nil, err
		}
		item := models.FeedItem{ID: obj.key, MediaURI: media, Position: offset + i}
		if obj.poster != "" {
			if item.PosterURI, err = f.uri(obj.poster); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *S3Feed) objects(ctx context.Context) ([]s3Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listed {
		return f.listing, nil
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(f.cfg.Bucket),
		Prefix: aws.String(f.cfg.Prefix),
	}

	var videos []string
	images := make(map[string]string)
	err := f.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			key := *obj.Key
			ext := strings.ToLower(path.Ext(key))
			base := strings.TrimSuffix(key, path.Ext(key))
			switch {
			case videoExts[ext]:
				videos = append(videos, key)
			case isPoster(ext):
				images[base] = key
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing s3://%s/%s: %v", shared.ErrFeedUnavailable, f.cfg.Bucket, f.cfg.Prefix, err)
	}

	sort.Strings(videos)
	listing := make([]s3Object, len(videos))
	for i, key := range videos {
		listing[i] = s3Object{key: key, poster: images[strings.TrimSuffix(key, path.Ext(key))]}
	}

	f.listing, f.listed = listing, true
	f.logger.Debug("listed bucket", "bucket", f.cfg.Bucket, "prefix", f.cfg.Prefix, "videos", len(listing))
	return listing, nil
}

func (f *S3Feed) uri(key string) (string, error) {
	if f.cfg.PresignTTL <= 0 {
		return fmt.Sprintf("s3://%s/%s", f.cfg.Bucket, key), nil
	}

	req, _ := f.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(f.cfg.Bucket),
		Key:    aws.String(key),
	})
	signed, err := req.Presign(f.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", shared.ErrFeedUnavailable, key, err)
	}
	return signed, nil
}

func isPoster(ext string) bool {
	for _, e := range posterExts {
		if e == ext {
			return true
		}
	}
	return false
}
