package app

import "github.com/spf13/pflag"

// CliOptions is the interface an application's options aggregate must
// implement to be usable with App.
type CliOptions interface {
	// AddFlags adds flags to the flagset.
	AddFlags(fs *pflag.FlagSet)
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}

// PrintableOptions is an optional interface for options that can print themselves.
type PrintableOptions interface {
	String() string
}
