// Package version holds build metadata for the copyir tools.
// The variables can be overridden at build time via -ldflags.
package version

import (
	"strings"

	"github.com/fatih/color"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the tools.
	Version = "0.3.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Plain returns "copyir <version>", the form sent over the build protocol.
func Plain() string {
	v := strings.TrimSpace(Version)
	if v == "" {
		v = "dev"
	}
	return "copyir " + v
}

// Colored renders the version with one colour per semantic component. Any
// pre-release suffix is left uncoloured; versions that are not x.y.z are
// returned unchanged.
func Colored() string {
	v := strings.TrimSpace(Version)
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	out := versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
