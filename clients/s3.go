package clients

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const presignExpiry = 6 * time.Hour

type S3Signer interface {
	PresignS3(bucket, key string) (string, error)
}

type S3Client struct {
	s3     *s3.S3
	expiry time.Duration
}

// NewS3Signer builds a presigning client from the credentials and endpoint of
// an s3+http(s)://key:secret@host/bucket OS URL. Returns nil for any other
// kind of store.
func NewS3Signer(osURL, region string) (*S3Client, error) {
	u, err := url.Parse(osURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing object store URL: %w", err)
	}
	if !strings.HasPrefix(u.Scheme, "s3+") {
		return nil, nil
	}
	if u.User == nil {
		return nil, fmt.Errorf("object store URL has no credentials")
	}
	secret, _ := u.User.Password()
	if region == "" {
		region = "us-east-1"
	}

	endpoint := strings.TrimPrefix(u.Scheme, "s3+") + "://" + u.Host
	sess, err := session.NewSession(aws.NewConfig().
		WithRegion(region).
		WithCredentials(credentials.NewStaticCredentials(u.User.Username(), secret, "")).
		WithEndpoint(endpoint).
		WithS3ForcePathStyle(true))
	if err != nil {
		return nil, fmt.Errorf("error creating S3 session: %w", err)
	}
	return &S3Client{s3: s3.New(sess), expiry: presignExpiry}, nil
}

func (c *S3Client) PresignS3(bucket, key string) (string, error) {
	req, _ := c.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	return req.Presign(c.expiry)
}
