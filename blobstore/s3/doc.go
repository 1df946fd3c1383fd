// Package s3 stores model files in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "models/")
//	data, err := blobstore.ReadAll(ctx, store, "mobilenet.tflite")
//
// Reads fetch the whole object with one ranged GET. Writes go through the
// transfer manager, which uses multipart uploads for large files and asks S3
// for a CRC32C checksum.
package s3
