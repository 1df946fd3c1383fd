// Command tflplan computes tensor arena layouts for TFLite models and embeds
// them in the model file.
//
// Usage:
//
//	tflplan plan model.tflite -o planned.tflite --arenas 2 --alignment 64
//	tflplan verify planned.tflite
//
// Locations may be local paths, s3://bucket/key or minio://host/bucket/key.
// Names ending in .zst or .lz4 are compressed.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
