package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"

	"aura/internal/ast"
)

// Symbol names are derived only from internal names and descriptors so
// that separately compiled classes agree on them.

// MethodSymbol names the function implementing owner.name+desc.
func MethodSymbol(owner, name, desc string) string {
	return "[J]" + owner + "." + name + desc
}

// MethodSymbolOf is MethodSymbol for a declared method.
func MethodSymbolOf(m *ast.Method) string {
	return MethodSymbol(m.Class.Name, m.Name, m.Descriptor())
}

// SynchronizedWrapperSymbol names the monitor-holding wrapper of a
// synchronized method.
func SynchronizedWrapperSymbol(owner, name, desc string) string {
	return MethodSymbol(owner, name, desc) + "[synchronized]"
}

// BridgePtrSymbol names the global slot holding a bridge method's bound
// native function pointer.
func BridgePtrSymbol(m *ast.Method) string {
	return MethodSymbolOf(m) + "[bridgeptr]"
}

// BridgeCSymbol returns a C identifier for the compatibility wrapper of a
// bridge method.
func BridgeCSymbol(m *ast.Method) string {
	return "bridge_" + CSafe(m.Class.Name+"_"+m.Name) + "_" + Hash(m.Descriptor())
}

func fieldSymbol(owner, name, desc string) string {
	return "[J]" + owner + "." + name + "(" + desc + ")"
}

// GetterSymbol names the accessor reading owner.name.
func GetterSymbol(owner, name, desc string) string {
	return fieldSymbol(owner, name, desc) + "[get]"
}

// SetterSymbol names the accessor writing owner.name.
func SetterSymbol(owner, name, desc string) string {
	return fieldSymbol(owner, name, desc) + "[set]"
}

// StaticStorageSymbol names the global holding the value of a static
// field.
func StaticStorageSymbol(owner, name, desc string) string {
	return fieldSymbol(owner, name, desc) + "[static]"
}

// ClassCacheSymbol names the global caching a class's Class*.
func ClassCacheSymbol(class string) string { return "[J]" + class + "[classptr]" }

// AllocatorSymbol names the function allocating an instance of class.
func AllocatorSymbol(class string) string { return "[J]" + class + "[allocator]" }

// LdcInternalSymbol names the function returning the Class object of a
// class from within its own compilation unit.
func LdcInternalSymbol(class string) string { return "[J]" + class + "[ldcint]" }

// InfoStructSymbol names the global describing class to the runtime, used
// by landing pads to match exception types.
func InfoStructSymbol(class string) string { return "[J]" + class + "[info]" }

// LdcStringSymbol names the lazily initialised accessor of a string
// literal, keyed by its modified UTF-8 encoding.
func LdcStringSymbol(modUTF8 []byte) string {
	sum := sha1.Sum(modUTF8)
	return "[J]ldcstring_" + hex.EncodeToString(sum[:])
}

// LdcStringPtrSymbol names the cache slot of a string literal accessor.
func LdcStringPtrSymbol(modUTF8 []byte) string {
	return LdcStringSymbol(modUTF8) + "[ptr]"
}

// CSafe replaces every byte that may not appear in a C identifier.
func CSafe(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			sb.WriteByte(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Hash returns a short stable hash of s for disambiguating CSafe names.
func Hash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
