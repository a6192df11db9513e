package config

import "github.com/spf13/pflag"

// Flag names understood by ApplyFlags.
const (
	FlagOutput    = "output"
	FlagVerbosity = "verbosity"
	FlagFormat    = "format"
	FlagRingSize  = "ring-size"
	FlagBuckets   = "buckets"
	FlagDump      = "dump"
	FlagAddresses = "addresses"
	FlagJobs      = "jobs"
	FlagOSThreads = "os-threads"
)

// ApplyFlags overrides c with every flag in fs that the user changed.
// Flags not registered in fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err != nil || !changed(fs, name) {
			return
		}
		*dst, err = fs.GetString(name)
	}
	num := func(name string, dst *int) {
		if err != nil || !changed(fs, name) {
			return
		}
		*dst, err = fs.GetInt(name)
	}
	flag := func(name string, dst *bool) {
		if err != nil || !changed(fs, name) {
			return
		}
		*dst, err = fs.GetBool(name)
	}

	str(FlagOutput, &c.Log.Path)
	str(FlagVerbosity, &c.Log.Verbosity)
	str(FlagFormat, &c.Log.Format)
	num(FlagRingSize, &c.Log.RingSize)
	num(FlagBuckets, &c.Cache.Buckets)
	str(FlagDump, &c.Cache.Dump)
	flag(FlagAddresses, &c.Cache.Addresses)
	num(FlagJobs, &c.Replay.Jobs)
	flag(FlagOSThreads, &c.Replay.OSThreads)
	if err != nil {
		return err
	}
	return c.Validate()
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
