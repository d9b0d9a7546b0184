// Package s3test provides S3 clients for tests: an in-process fake by
// default, or a real endpoint when FLATTREE_TEST_S3_ENDPOINT is set.
package s3test

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/http/httptest"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// Client returns a client, a bucket that exists and is empty, and a func to
// release the fake server.
func Client() (*s3.S3, string, func(), error) {
	client, closer, err := newClient()
	if err != nil {
		return nil, "", nil, err
	}
	bucketName := os.Getenv("FLATTREE_TEST_S3_BUCKET")
	if bucketName != "" {
		if err := emptyBucket(client, bucketName); err != nil {
			closer()
			return nil, "", nil, fmt.Errorf("empty bucket %s: %w", bucketName, err)
		}
		return client, bucketName, closer, nil
	}
	bucketName, err = randBucketName()
	if err != nil {
		closer()
		return nil, "", nil, err
	}
	if _, err := client.CreateBucket(&s3.CreateBucketInput{Bucket: &bucketName}); err != nil {
		closer()
		return nil, "", nil, fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	return client, bucketName, closer, nil
}

func newClient() (*s3.S3, func(), error) {
	if endpoint := os.Getenv("FLATTREE_TEST_S3_ENDPOINT"); endpoint != "" {
		config := aws.Config{
			Credentials: credentials.NewStaticCredentials(
				os.Getenv("AWS_ACCESS_KEY_ID"),
				os.Getenv("AWS_SECRET_ACCESS_KEY"),
				os.Getenv("AWS_SESSION_TOKEN"),
			),
			Endpoint:         aws.String(endpoint),
			S3ForcePathStyle: aws.Bool(true),
		}
		// A real AWS region lets the SDK pick the endpoint; anything else
		// (min.io, Wasabi) only needs a nonempty region.
		config.Region = aws.String(getEnvOrDefault("AWS_REGION", "not-using-AWS"))
		if *config.Region != "not-using-AWS" {
			config.Endpoint = nil
		}
		sess, err := session.NewSession(&config)
		if err != nil {
			return nil, nil, fmt.Errorf("session: %w", err)
		}
		return s3.New(sess), func() {}, nil
	}

	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())
	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			"TEST-ACCESSKEYID",
			"TEST-SECRETACCESSKEY",
			"",
		),
		Endpoint:         aws.String(ts.URL),
		Region:           aws.String("ca-west-1"),
		DisableSSL:       aws.Bool(true),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("session: %w", err)
	}
	return s3.New(sess), ts.Close, nil
}

func emptyBucket(client *s3.S3, bucketName string) error {
	return client.ListObjectsV2Pages(&s3.ListObjectsV2Input{Bucket: &bucketName},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				_, err := client.DeleteObject(&s3.DeleteObjectInput{
					Bucket: &bucketName,
					Key:    obj.Key,
				})
				if err != nil {
					return false
				}
			}
			return true
		})
}

func getEnvOrDefault(name, def string) string {
	if res := os.Getenv(name); res != "" {
		return res
	}
	return def
}

func randBucketName() (string, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("bucket-%s", i), nil
}
