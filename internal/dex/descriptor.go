package dex

import "strings"

// JavaName converts a DEX type descriptor to a Java source name:
//
//	Ljava/lang/String;  ->  java.lang.String
//	[I                  ->  int[]
//	V                   ->  void
//
// Unknown descriptors are returned unchanged.
func JavaName(desc string) string {
	switch desc {
	case "V":
		return "void"
	case "Z":
		return "boolean"
	case "B":
		return "byte"
	case "S":
		return "short"
	case "C":
		return "char"
	case "I":
		return "int"
	case "J":
		return "long"
	case "F":
		return "float"
	case "D":
		return "double"
	}
	if strings.HasPrefix(desc, "[") {
		return JavaName(desc[1:]) + "[]"
	}
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		return strings.ReplaceAll(desc[1:len(desc)-1], "/", ".")
	}
	return desc
}

// Descriptor converts a Java source name back to a DEX type descriptor.
// It is the inverse of JavaName.
func Descriptor(name string) string {
	if strings.HasSuffix(name, "[]") {
		return "[" + Descriptor(name[:len(name)-2])
	}
	switch name {
	case "void":
		return "V"
	case "boolean":
		return "Z"
	case "byte":
		return "B"
	case "short":
		return "S"
	case "char":
		return "C"
	case "int":
		return "I"
	case "long":
		return "J"
	case "float":
		return "F"
	case "double":
		return "D"
	}
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}
