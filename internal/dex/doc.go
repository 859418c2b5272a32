// Package dex parses DEX (Dalvik Executable) files into the metadata
// tables the resolution engine searches: strings, type descriptors,
// field/method prototypes, and class definitions.
//
// See https://source.android.com/devices/tech/dalvik/dex-format for the
// format specification.
//
// The parser is read-only and eager for the id tables (strings, types,
// protos, field ids, method ids, class defs) but lazy for per-class
// member lists: class_data_item is decoded on first Class() access and
// memoized. All exposed names are Java names (com.example.Foo, int[]),
// not raw descriptors.
package dex
