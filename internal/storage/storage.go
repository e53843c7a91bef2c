package storage

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"
)

// Storage keeps generated documents and returns the URL they can be fetched from.
type Storage interface {
	Save(filename string, body []byte) (string, error)
}

type LocalStorage struct {
	dir       string
	urlPrefix string
}

type SpacesStorage struct {
	client *s3.S3
	bucket string
	cdnURL string
	prefix string
}

// NewLocalStorage writes into dir; returned URLs are urlPrefix + file name.
func NewLocalStorage(dir, urlPrefix string) *LocalStorage {
	return &LocalStorage{dir: dir, urlPrefix: urlPrefix}
}

func NewSpacesStorage(endpoint, region, bucket, cdnURL, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesStorage{
		client: s3.New(sess),
		bucket: bucket,
		cdnURL: cdnURL,
		prefix: "exports",
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeFilename makes a unique file name without spaces or punctuation.
func normalizeFilename(original string, now time.Time) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeChars.ReplaceAllString(base, "")
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405.000"), strings.ToLower(ext))
}

func (ls *LocalStorage) Save(filename string, body []byte) (string, error) {
	name := normalizeFilename(filename, time.Now())

	if err := os.MkdirAll(ls.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ls.dir, name), body, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	log.Debug().Str("original", filename).Str("stored", name).Msg("[storage] file saved locally")
	return strings.TrimSuffix(ls.urlPrefix, "/") + "/" + name, nil
}

func (ss *SpacesStorage) Save(filename string, body []byte) (string, error) {
	name := normalizeFilename(filename, time.Now())
	key := path.Join(ss.prefix, name)

	_, err := ss.client.PutObject(&s3.PutObjectInput{
		Bucket:             aws.String(ss.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(contentType(name)),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
		ACL:                aws.String("public-read"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("[storage] upload to Spaces failed")
		return "", fmt.Errorf("failed to upload to Spaces: %w", err)
	}

	return fmt.Sprintf("%s/%s", strings.TrimSuffix(ss.cdnURL, "/"), key), nil
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
