package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Info describes the build of an executable
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Compiler  string `json:"compiler"`
	Source    string `json:"source,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Hash      string `json:"hash,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Set with -ldflags at build time
var (
	GitSource   string
	GitTag      string
	GitBranch   string
	GitHash     string
	GoBuildTime string
)

const product = "filezen-go"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Version returns the git tag, then the branch, then the short revision
// from the embedded build info, or "dev"
func Version() string {
	switch {
	case GitTag != "":
		return GitTag
	case GitBranch != "":
		return GitBranch
	}
	if rev := setting("vcs.revision"); rev != "" {
		return rev[:min(len(rev), 12)]
	}
	return "dev"
}

// UserAgent returns the User-Agent header sent by the API client
func UserAgent() string {
	return product + "/" + Version() + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

// Build returns the build information for the named executable
func Build(name string) Info {
	info := Info{
		Name:      name,
		Version:   Version(),
		Compiler:  runtime.Version(),
		Source:    GitSource,
		Tag:       GitTag,
		Branch:    GitBranch,
		Hash:      GitHash,
		BuildTime: GoBuildTime,
	}

	// Fill in missing fields from the embedded build info
	if bi, ok := debug.ReadBuildInfo(); ok && info.Source == "" {
		info.Source = bi.Main.Path
	}
	if info.Hash == "" {
		info.Hash = setting("vcs.revision")
	}
	if info.BuildTime == "" {
		info.BuildTime = setting("vcs.time")
	}
	info.Modified = setting("vcs.modified") == "true"
	if goos, goarch := setting("GOOS"), setting("GOARCH"); goos != "" && goarch != "" {
		info.Platform = goos + "/" + goarch
	}
	return info
}

// JSON returns the indented build information for the named executable
func JSON(name string) []byte {
	data, err := json.MarshalIndent(Build(name), "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func setting(key string) string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == key {
				return s.Value
			}
		}
	}
	return ""
}
