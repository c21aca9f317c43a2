package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type FileCommands struct {
	List   ListCommand   `cmd:"" group:"FILES" help:"List files"`
	Get    GetCommand    `cmd:"" group:"FILES" help:"Get file information"`
	Delete DeleteCommand `cmd:"" group:"FILES" help:"Delete a file by id or url"`
	Sign   SignCommand   `cmd:"" group:"FILES" help:"Generate a signed url"`
}

type ListCommand struct {
	Limit  int `name:"limit" short:"n" help:"Maximum number of files to return" default:"20"`
	Offset int `name:"offset" help:"Number of files to skip" default:"0"`
}

type GetCommand struct {
	Id string `arg:"" help:"File id"`
}

type DeleteCommand struct {
	UrlOrId string `arg:"" name:"url-or-id" help:"File id or url"`
}

type SignCommand struct {
	Path      string `arg:"" help:"API path to sign (e.g. /files/upload)"`
	FileKey   string `name:"file-key" required:"" help:"File key the url is bound to"`
	ExpiresIn int    `name:"expires-in" help:"Lifetime of the url in seconds" default:"3600"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cmd *ListCommand) Run(app *Globals) error {
	s, err := app.Storage()
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.ListFiles(app.ctx, schema.ListFilesRequest{Limit: cmd.Limit, Offset: cmd.Offset})
	if err != nil {
		return err
	}
	if app.Debug {
		return prettyJSON(list)
	}
	return printListing(list)
}

func (cmd *GetCommand) Run(app *Globals) error {
	s, err := app.Storage()
	if err != nil {
		return err
	}
	defer s.Close()

	file, err := s.GetFile(app.ctx, cmd.Id)
	if err != nil {
		return err
	}
	return prettyJSON(file)
}

func (cmd *DeleteCommand) Run(app *Globals) error {
	s, err := app.Storage()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(app.ctx, cmd.UrlOrId); err != nil {
		return err
	}
	return prettyJSON(schema.DeleteResponse{Success: true})
}

func (cmd *SignCommand) Run(app *Globals) error {
	s, err := app.Storage()
	if err != nil {
		return err
	}
	defer s.Close()

	url, err := s.GenerateSignedUrl(schema.SignRequest{
		Path:      cmd.Path,
		FileKey:   cmd.FileKey,
		ExpiresIn: cmd.ExpiresIn,
	})
	if err != nil {
		return err
	}
	return prettyJSON(schema.SignResponse{Url: url})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func printListing(list *schema.FileList) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tCREATED")
	for _, file := range list.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", file.Id, file.Name, file.MimeType, file.Size, file.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(os.Stdout, "page %d of %d, %d of %d files\n", list.Page, list.PageCount, list.Count, list.Total)
	return err
}
