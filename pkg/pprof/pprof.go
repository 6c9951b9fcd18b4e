// Package pprof writes CPU and allocation profiles for the aether commands.
package pprof

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/spf13/pflag"
)

// Options holds the profile destinations. An empty path disables that
// profile.
type Options struct {
	CPUProfile    string
	AllocsProfile string
}

// RegisterFlags adds -cpuprofile and -allocsprofile to f.
func (o *Options) RegisterFlags(f *pflag.FlagSet) {
	f.StringVar(&o.CPUProfile, "cpuprofile", "", "write CPU profile to file")
	f.StringVar(&o.AllocsProfile, "allocsprofile", "", "write memory allocation profile to file")
}

// Start begins the requested profiles and returns a function that finishes
// them. Profiles that cannot be created are skipped with a warning on stderr.
func (o *Options) Start(stderr io.Writer) (stop func()) {
	var cleanups []func()
	if o.CPUProfile != "" {
		f, err := os.Create(o.CPUProfile)
		if err != nil {
			fmt.Fprintln(stderr, "Warning: cannot create CPU profile:", err)
			fmt.Fprintln(stderr, "Continuing without CPU profiling.")
		} else if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintln(stderr, "Warning: cannot start CPU profile:", err)
			f.Close()
		} else {
			cleanups = append(cleanups, func() {
				pprof.StopCPUProfile()
				f.Close()
			})
		}
	}
	if o.AllocsProfile != "" {
		f, err := os.Create(o.AllocsProfile)
		if err != nil {
			fmt.Fprintln(stderr, "Warning: cannot create memory allocation profile:", err)
			fmt.Fprintln(stderr, "Continuing without memory allocation profiling.")
		} else {
			cleanups = append(cleanups, func() {
				pprof.Lookup("allocs").WriteTo(f, 0)
				f.Close()
			})
		}
	}
	return func() {
		for _, f := range cleanups {
			f()
		}
	}
}
