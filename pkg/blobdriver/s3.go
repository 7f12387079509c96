// Keeps your envelopes in AWS S3
package blobdriver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"regexp"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/function61/gokit/aws/s3facade"
	"github.com/function61/gokit/logex"
)

type s3driver struct {
	bucket string
	client *s3.S3
	logl   *logex.Leveled
}

func NewS3(opts string, logger *log.Logger) (*s3driver, error) {
	bucket, regionId, accessKeyId, secret, err := parseS3OptionsString(opts)
	if err != nil {
		return nil, err
	}

	bucketCtx, err := s3facade.Bucket(
		bucket,
		s3facade.Credentials(credentials.NewStaticCredentials(accessKeyId, secret, "")),
		regionId)
	if err != nil {
		return nil, err
	}

	return &s3driver{
		bucket: bucket,
		client: bucketCtx.S3,
		logl:   logex.Levels(logger),
	}, nil
}

func (g *s3driver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	res, err := g.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &g.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, os.ErrNotExist
		}

		return nil, fmt.Errorf("s3 GetObject: %v", err)
	}

	return res.Body, nil
}

func (g *s3driver) Put(ctx context.Context, key string, content io.Reader) error {
	// S3 internally requires retry support, which requires an io.ReadSeeker and
	// thus we're forced to buffer
	buf, err := ioutil.ReadAll(content)
	if err != nil {
		return err
	}

	if _, err := g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: &g.bucket,
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	}); err != nil {
		return fmt.Errorf("s3 PutObject: %v", err)
	}

	return nil
}

func (g *s3driver) Delete(ctx context.Context, key string) error {
	if _, err := g.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &g.bucket,
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 DeleteObject: %v", err)
	}

	return nil
}

func (g *s3driver) Mountable(ctx context.Context) error {
	_, err := g.client.ListObjectsWithContext(ctx, &s3.ListObjectsInput{
		Bucket:  &g.bucket,
		MaxKeys: aws.Int64(1), // we'll just want to see that the access key works
	})
	return err
}

func (g *s3driver) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}

	if err := g.client.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
		Bucket: &g.bucket,
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsOutput, lastPage bool) bool {
		for _, object := range page.Contents {
			keys = append(keys, *object.Key)
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("s3 ListObjects: %v", err)
	}

	return keys, nil
}

var parseS3OptionsStringRe = regexp.MustCompile("^([^:]+):([^:]+):([^:]+):([^:]+)$")

func parseS3OptionsString(serialized string) (string, string, string, string, error) {
	match := parseS3OptionsStringRe.FindStringSubmatch(serialized)
	if match == nil {
		return "", "", "", "", errors.New("s3 options not in format bucket:region:accessKeyId:secret")
	}

	return match[1], match[2], match[3], match[4], nil
}
