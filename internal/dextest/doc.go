// Package dextest builds small synthetic DEX files for tests.
//
// The builder emits the subset of the format the dex package reads:
// header, string/type/proto/field/method id tables, class defs, type
// lists, and class_data_items. Checksums and the map section are left
// zeroed; the parser does not verify them.
package dextest
