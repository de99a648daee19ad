package load

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Fetcher resolves an asset href to its bytes.
type Fetcher interface {
	Fetch(ctx context.Context, href string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher; tests use it to serve canned
// rasters.
type FetcherFunc func(ctx context.Context, href string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, href string) ([]byte, error) {
	return f(ctx, href)
}

// HTTPFetcher fetches https hrefs.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 300 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, href string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", href, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// S3Fetcher fetches s3:// hrefs, requester-pays: the USGS Landsat archive
// only serves full-resolution data that way.
type S3Fetcher struct {
	client *s3.Client
}

func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, href string) ([]byte, error) {
	bucket, key, err := splitS3Href(href)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		RequestPayer: s3types.RequestPayerRequester,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", href, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func splitS3Href(href string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(href, "s3://")
	if !ok {
		return "", "", fmt.Errorf("href %q is not s3", href)
	}

	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("href %q has no bucket/key", href)
	}

	return bucket, key, nil
}

// Auto routes hrefs by scheme.
type Auto struct {
	HTTP Fetcher
	S3   Fetcher
}

func (a *Auto) Fetch(ctx context.Context, href string) ([]byte, error) {
	if strings.HasPrefix(href, "s3://") {
		return a.S3.Fetch(ctx, href)
	}

	return a.HTTP.Fetch(ctx, href)
}
