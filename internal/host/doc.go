// Package host describes the instrumentation host that bbtrace plugs into.
//
// The host owns code discovery and execution. It reports every newly seen
// block once through a BlockEventFunc and guarantees that the ExecHook
// returned for that block runs on every later execution of the block, on
// the executing thread. Decoding and module lookup are host services too and
// are consumed through the Decoder and ModuleResolver interfaces.
package host
