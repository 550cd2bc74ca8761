// Package enum provides a registry of enum value aliases for decoding.
//
// This package lets callers register user-friendly spellings for protobuf
// enum values. For example, mapping "syn" to "SYN_SCAN" for the
// scan.v1.ScanType enum.
//
// # Usage
//
// Register aliases for an enum:
//
//	enum.Register("scan.v1.ScanType", map[string]string{
//	    "syn": "SYN_SCAN",
//	    "udp": "UDP_SCAN",
//	})
//
// Or register several enums at once:
//
//	enum.RegisterBatch(map[protoreflect.FullName]map[string]string{
//	    "scan.v1.ScanType": {"syn": "SYN_SCAN"},
//	    "scan.v1.Timing":   {"fast": "TIMING_FAST"},
//	})
//
// Decode with the aliases enabled:
//
//	msg, err := protodict.Decode(m, &scanv1.ScanRequest{},
//	    protodict.WithEnumAliases(enum.Default()))
//
// Declared enum names always win over aliases, so an alias can never shadow
// a real value.
//
// # Thread Safety
//
// All operations are thread-safe and can be called concurrently from multiple
// goroutines. The registry uses sync.RWMutex for efficient concurrent access.
//
// # Case Insensitivity
//
// Aliases are matched case-insensitively, so "SYN", "syn", and "Syn" all
// resolve to the same registered value name.
package enum
