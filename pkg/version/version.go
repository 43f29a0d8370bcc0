package version

import (
	"runtime/debug"
)

// Version is "revision@buildtime" from vcs build info, "unknown" when built
// outside a checkout.
var Version = func() string {
	rev := ""
	t := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				rev = setting.Value
			}
			if setting.Key == "vcs.time" {
				t = setting.Value
			}
		}
	}
	if rev == "" {
		return "unknown"
	}
	return rev + "@" + t
}()
