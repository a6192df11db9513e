package host

// EmitFlags tell the host how to treat the code emitted for a block.
type EmitFlags uint8

const (
	EmitDefault EmitFlags = iota
	// EmitStoreTranslations asks the host to keep translation info for the block.
	EmitStoreTranslations
)

// ExecHook runs on every execution of an instrumented block. thread is the
// host's identity for the executing thread.
type ExecHook func(thread uint64)

// BlockEventFunc is invoked once per newly seen block. The returned hook, if
// non-nil, is called on every execution of that block.
type BlockEventFunc func(b *Block) (ExecHook, EmitFlags)

// Host is the instrumentation host as seen by a tracing client.
type Host interface {
	RegisterBlockEvent(fn BlockEventFunc)
	RegisterExitEvent(fn func())
	Decoder() Decoder
	Resolver() ModuleResolver
}
