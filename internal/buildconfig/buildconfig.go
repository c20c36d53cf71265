// Package buildconfig exposes values stamped into the binary at link time:
//
//	go build -ldflags "-X github.com/tangoverse/mneme/internal/buildconfig.version=v0.3.0 \
//	  -X github.com/tangoverse/mneme/internal/buildconfig.commit=$(git rev-parse --short HEAD)"
package buildconfig

import "go.uber.org/zap"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date,omitempty"`
}

// Current returns the build metadata baked into the binary.
func Current() Info {
	return Info{Version: version, Commit: commit, BuildDate: buildDate}
}

// IsDev reports whether the binary was built without a release version.
func (i Info) IsDev() bool {
	return i.Version == "dev"
}

// Fields returns the build as zap fields for the startup log line.
func (i Info) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("version", i.Version),
		zap.String("commit", i.Commit),
	}
	if i.BuildDate != "" {
		fields = append(fields, zap.String("build_date", i.BuildDate))
	}
	return fields
}
