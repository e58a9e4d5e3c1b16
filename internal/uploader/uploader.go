package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

// objectPutter is the S3 call the uploader needs
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader archives closed snapshot journals to S3
type Uploader struct {
	s3Client    objectPutter
	bucket      string
	deleteAfter bool
	maxRetries  int
	log         *zap.SugaredLogger

	backoff func(attempt int) time.Duration
}

// flyTokenRetriever implements stscreds.IdentityTokenRetriever for Fly.io OIDC
type flyTokenRetriever struct {
	socketPath string
	audience   string
}

// GetIdentityToken fetches an OIDC token from Fly.io's Unix socket API
func (f *flyTokenRetriever) GetIdentityToken() ([]byte, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", f.socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}

	reqBody, err := json.Marshal(map[string]string{"aud": f.audience})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := client.Post("http://localhost/v1/tokens/oidc", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

// Options selects bucket, credentials and retry policy
type Options struct {
	Bucket          string
	Region          string
	RoleARN         string // OIDC web identity role; preferred
	AccessKeyID     string // legacy static credentials
	SecretAccessKey string
	DeleteAfter     bool
	MaxRetries      int
}

// New creates an uploader. A role ARN selects OIDC web-identity
// credentials; otherwise the static key pair is used.
func New(ctx context.Context, opts Options, logger *zap.SugaredLogger) (*Uploader, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.RoleARN == "" {
		logger.Warnf("Using static AWS credentials (deprecated). Migrate to OIDC for better security.")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if opts.RoleARN != "" {
		logger.Infof("Using OIDC authentication with role: %s", opts.RoleARN)
		provider := stscreds.NewWebIdentityRoleProvider(
			sts.NewFromConfig(cfg),
			opts.RoleARN,
			&flyTokenRetriever{socketPath: "/.fly/api", audience: "sts.amazonaws.com"},
		)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return newUploader(s3.NewFromConfig(cfg), opts, logger), nil
}

func newUploader(client objectPutter, opts Options, logger *zap.SugaredLogger) *Uploader {
	return &Uploader{
		s3Client:    client,
		bucket:      opts.Bucket,
		deleteAfter: opts.DeleteAfter,
		maxRetries:  opts.MaxRetries,
		log:         logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

// ScanExisting queues journals left over from previous runs
func (u *Uploader) ScanExisting(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read directory: %w", err)
	}

	var found int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		found++
		go u.uploadWithRetry(ctx, filepath.Join(dir, entry.Name()))
	}
	if found > 0 {
		u.log.Infof("Found %d leftover journal(s) to upload", found)
	}
	return nil
}

// Start uploads every path received on fileChan until ctx is cancelled
func (u *Uploader) Start(ctx context.Context, fileChan <-chan string) error {
	for {
		select {
		case path := <-fileChan:
			go u.uploadWithRetry(ctx, path)

		case <-ctx.Done():
			u.log.Infof("Uploader shutting down...")
			return ctx.Err()
		}
	}
}

func (u *Uploader) uploadWithRetry(ctx context.Context, path string) {
	filename := filepath.Base(path)

	key, err := objectKey(filename)
	if err != nil {
		u.log.Errorf("Error generating S3 key for %s: %v", filename, err)
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.upload(ctx, path, key)
		if err == nil {
			u.log.Infof("Uploaded %s to s3://%s/%s", filename, u.bucket, key)
			if u.deleteAfter {
				if err := os.Remove(path); err != nil {
					u.log.Errorf("Error deleting local journal %s: %v", path, err)
				}
			}
			return
		}

		if attempt < u.maxRetries {
			wait := u.backoff(attempt)
			u.log.Warnf("Upload attempt %d/%d failed for %s: %v. Retrying in %v",
				attempt+1, u.maxRetries, filename, err, wait)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
	}

	u.log.Errorf("Failed to upload %s after %d attempts", filename, u.maxRetries+1)
}

func (u *Uploader) upload(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// objectKey derives the S3 key from a journal filename
// Input: twitch_forsen_1a2b3c4d_20251230_1030.jsonl
// Output: 2025/12/30/twitch/forsen/twitch_forsen_1a2b3c4d_20251230_1030.jsonl
func objectKey(filename string) (string, error) {
	parts := strings.Split(strings.TrimSuffix(filename, ".jsonl"), "_")
	if len(parts) < 5 {
		return "", fmt.Errorf("invalid filename format: %s", filename)
	}

	// platform first; session, date and time last; the channel may contain underscores
	platform := parts[0]
	channel := strings.Join(parts[1:len(parts)-3], "_")

	t, err := time.Parse("20060102_1504", parts[len(parts)-2]+"_"+parts[len(parts)-1])
	if err != nil {
		return "", fmt.Errorf("parse timestamp: %w", err)
	}

	return fmt.Sprintf("%04d/%02d/%02d/%s/%s/%s",
		t.Year(), t.Month(), t.Day(), platform, channel, filename), nil
}
