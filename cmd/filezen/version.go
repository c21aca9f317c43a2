package main

import (
	"fmt"

	// Packages
	version "github.com/FileZen/filezen/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type VersionCommands struct {
	Version VersionCommand `cmd:"" name:"version" group:"MISC" help:"Print version information"`
}

type VersionCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *VersionCommand) Run(app *Globals) error {
	_, err := fmt.Println(string(version.JSON(app.vars["EXEC"])))
	return err
}
