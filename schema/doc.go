// Package schema is the object model of TFLite model descriptors.
//
// Decode turns a flatbuffer tagged "TFL3" into a Model tree that owns all of
// its memory; Encode writes a tree back into a fresh flatbuffer. The tree
// mirrors the descriptor's tables one to one and keeps index-based
// references (tensor to buffer, operator to operator code) as plain integers.
//
// Builtin operator options are a union of about a hundred tables. They are
// carried generically as Options: a registry (see Layout) records the field
// kinds of every supported table and the raw bits of each populated field
// are kept, so a decode/encode cycle never alters an option value.
package schema
