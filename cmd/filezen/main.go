package main

import (
	"os"
	"path/filepath"

	// Packages
	kong "github.com/alecthomas/kong"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type CLI struct {
	Globals
	UploadCommands
	FileCommands
	ServerCommands
	VersionCommands
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	// Parse command-line flags
	var cli CLI
	kong := kong.Parse(&cli,
		kong.Name(execName()),
		kong.Description("FileZen command-line tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{
			"EXEC": execName(),
		},
	)

	// Create the app
	app := NewApp(cli.Globals, kong.Model.Vars())
	defer app.Close()

	// Run
	kong.FatalIfErrorf(kong.Run(app))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func execName() string {
	// The name of the executable
	name, err := os.Executable()
	if err != nil {
		panic(err)
	}
	return filepath.Base(name)
}
