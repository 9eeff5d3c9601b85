package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/OFFIS-RIT/wikigraph/internal/config"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// objectAPI is the part of the S3 client the publisher uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// artifact is one rendering of a graph.
type artifact struct {
	name        string
	format      export.Format
	contentType string
}

var artifacts = []artifact{
	{"graph.json", export.FormatNodes, "application/json"},
	{"entities.json", export.FormatEntities, "application/json"},
	{"graph.gml", export.FormatGML, "text/plain; charset=us-ascii"},
}

// Publisher uploads finished graphs as downloadable artifacts under
// graphs/<id>/ in the bucket.
type Publisher struct {
	api            objectAPI
	client         *s3.Client
	bucket         string
	publicEndpoint string
}

type NewPublisherParams struct {
	Client *s3.Client
	Bucket string
	// PublicEndpoint is the host download links are signed for. Defaults to
	// the client endpoint.
	PublicEndpoint string
}

func NewPublisher(params NewPublisherParams) *Publisher {
	return &Publisher{
		api:            params.Client,
		client:         params.Client,
		bucket:         params.Bucket,
		publicEndpoint: params.PublicEndpoint,
	}
}

func graphPrefix(graphID string) string {
	return path.Join("graphs", graphID) + "/"
}

// ArtifactKey returns the object key of a graph rendering.
func ArtifactKey(graphID, name string) string {
	return graphPrefix(graphID) + name
}

// PublishGraph renders g in every export format and uploads the results in
// parallel. It returns the object keys written.
func (p *Publisher) PublishGraph(ctx context.Context, g *common.Graph) ([]string, error) {
	keys := make([]string, len(artifacts))
	eg, ectx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		eg.Go(func() error {
			var buf bytes.Buffer
			if err := export.Encode(&buf, g, a.format); err != nil {
				return fmt.Errorf("failed to render %s: %w", a.name, err)
			}
			key := ArtifactKey(g.ID, a.name)
			_, err := p.api.PutObject(ectx, &s3.PutObjectInput{
				Bucket:      aws.String(p.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(buf.Bytes()),
				ContentType: aws.String(a.contentType),
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", key, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	logger.Info("[Storage] Graph artifacts published", "graph", g.ID, "count", len(keys))
	return keys, nil
}

// GetArtifact downloads one object.
func (p *Publisher) GetArtifact(ctx context.Context, key string) ([]byte, error) {
	result, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from S3: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// ListArtifacts returns the keys stored for a graph.
func (p *Publisher) ListArtifacts(ctx context.Context, graphID string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(graphPrefix(graphID)),
	}
	for {
		out, err := p.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts of %s: %w", graphID, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return keys, nil
}

// DeleteArtifacts removes everything stored for a graph.
func (p *Publisher) DeleteArtifacts(ctx context.Context, graphID string) error {
	keys, err := p.ListArtifacts(ctx, graphID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}
	_, err = p.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifacts of %s: %w", graphID, err)
	}
	logger.Info("[Storage] Graph artifacts deleted", "graph", graphID, "count", len(keys))
	return nil
}

// DownloadLink presigns a GET for key, valid for 15 minutes.
func (p *Publisher) DownloadLink(ctx context.Context, key string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("download links need an s3 client")
	}
	presignClient := p.client
	prefix := ""
	if p.publicEndpoint != "" {
		publicURL, err := url.Parse(p.publicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", p.publicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")
		// the signature has to match the host the browser will send
		presignClient = s3.NewFromConfig(
			aws.Config{
				Region:      p.client.Options().Region,
				Credentials: p.client.Options().Credentials,
				HTTPClient:  p.client.Options().HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(publicURL.Scheme + "://" + publicURL.Host)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(15*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	if prefix == "" {
		return out.URL, nil
	}
	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}
