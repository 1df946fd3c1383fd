// Package fs abstracts the file operations behind atomic descriptor writes
// so that tests can inject failures.
//
// Production code uses [Default]:
//
//	err := fs.WriteFile(fs.Default, "model.planned.tflite", out, 0o644)
//
// Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 16})
//	err := fs.WriteFile(ffs, path, out, 0o644) // path is left untouched
package fs
