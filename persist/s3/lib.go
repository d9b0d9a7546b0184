// Package s3 implements flattree.Persist on an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultKnownNames is how many stored names are remembered to skip
// redundant puts.
const DefaultKnownNames = 1000

// S3Interface is the subset of the S3 client used by Persist.
type S3Interface interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Persist stores each chunk as an object named Prefix+name.
type Persist struct {
	s3         S3Interface
	BucketName string
	Prefix     string
	// known holds names recently loaded or stored, which therefore exist.
	known   *simplelru.LRU
	knownMu sync.Mutex
}

// Load loads the bytes persisted in the named object. A missing object
// yields an error wrapping fs.ErrNotExist.
func (p *Persist) Load(ctx context.Context, name string) ([]byte, error) {
	output, err := p.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.BucketName),
		Key:    aws.String(p.Prefix + name),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%s%s: %w: %w", p.Prefix, name, fs.ErrNotExist, err)
		}
		return nil, err
	}
	defer output.Body.Close()
	b, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s%s: %w", p.Prefix, name, err)
	}
	p.remember(name)
	return b, nil
}

// Store persists the given bytes in an object of the given name, unless
// the object is already known to exist.
func (p *Persist) Store(ctx context.Context, name string, b []byte) error {
	p.knownMu.Lock()
	known := p.known.Contains(name)
	p.knownMu.Unlock()
	if known {
		return nil
	}
	_, err := p.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.BucketName),
		Key:    aws.String(p.Prefix + name),
		Body:   bytes.NewReader(b),
	})
	if err != nil {
		return fmt.Errorf("put %s%s: %w", p.Prefix, name, err)
	}
	p.remember(name)
	return nil
}

func (p *Persist) remember(name string) {
	p.knownMu.Lock()
	p.known.Add(name, nil)
	p.knownMu.Unlock()
}

// NewPersist returns a Persist that loads and stores chunks as objects
// with the given S3 client, bucket name, and key prefix.
func NewPersist(client S3Interface, bucketName, prefix string) *Persist {
	known, err := simplelru.NewLRU(DefaultKnownNames, nil)
	if err != nil {
		panic(err)
	}
	return &Persist{s3: client, BucketName: bucketName, Prefix: prefix, known: known}
}
