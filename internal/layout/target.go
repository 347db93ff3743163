package layout

// Target describes the ABI target triple and its pointer properties.
//
// Only x86_64-linux-gnu is implemented.
type Target struct {
	Triple    string // e.g. "x86_64-linux-gnu"
	PtrSize   int    // bytes; also the size of a reference slot
	PtrAlign  int    // bytes
	HeapAlign int    // object alignment of the managed heap
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:    "x86_64-linux-gnu",
		PtrSize:   8,
		PtrAlign:  8,
		HeapAlign: 8,
	}
}
