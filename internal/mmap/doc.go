// Package mmap maps descriptor files read-only into memory.
//
// A mapped descriptor is decoded in place; the decoder copies what it keeps,
// so the mapping can be closed as soon as decoding returns.
//
//	m, err := mmap.Open("model.tflite")
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	_ = m.Advise(mmap.AccessWillNeed)
//	model, err := schema.Decode(m.Bytes())
package mmap
