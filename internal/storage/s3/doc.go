/*
Package s3 is the request layer of objclient: it turns object operations into
addressed, signed and integrity-checked HTTP requests against Amazon S3 or a
compatible service.

# Architecture Overview

Every operation goes through the same preparation path:

	┌─────────────────────────────────────────────────────────────┐
	│        PutObject / GetObject / CompleteMultipartUpload       │
	│               PresignURL / DeleteBucket                      │
	└─────────────────────────────────────────────────────────────┘
	                          │
	┌─────────────────────────────────────────────────────────────┐
	│  addressing.Resolve   virtual-hosted or path style           │
	│  region discovery     RegionCache, one probe on a miss       │
	│  signing.Select       legacy or region-scoped context        │
	└─────────────────────────────────────────────────────────────┘
	                          │
	┌─────────────────────────────────────────────────────────────┐
	│  integrity pipeline   length, digest and progress stages     │
	│  Executor             net/http, redirects not followed       │
	└─────────────────────────────────────────────────────────────┘

# Region Discovery

Requests for a bucket on the global endpoint need a region before they can be
signed with the region-scoped scheme. The client looks the bucket up in its
RegionCache and, on a miss, asks the configured RegionProber once:

  - header: an anonymous HEAD on the bucket, reading X-Amz-Bucket-Region
  - aws: the SDK's manager.GetBucketRegion helper
  - none: no probing; unknown regions fail with a signing error

Probers built from configuration are wrapped in a GuardedProber that stops
probing an endpoint after repeated failures.

# Multipart Completion

CompleteMultipartUpload may return 200 OK with an <Error> document in the
body. The client decodes every completion body and hands the result to a
multipart.Completer, which retries the "InternalError ... Please try again."
case according to the configured retry policy.

# Configuration

	cfg := s3.NewDefaultConfig()
	cfg.Region = "eu-west-1"
	cfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	client, err := s3.NewClient(cfg, s3.WithLogger(logger))
	if err != nil {
		return err
	}

	out, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        "my-bucket",
		Key:           "data/file.bin",
		Body:          f,
		ContentLength: aws.Int64(size),
	})

Metrics are reported through the Recorder interface; metrics.Collector
implements it with Prometheus.
*/
package s3
