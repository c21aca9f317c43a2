// Package httpclient provides a typed Go client for the FileZen storage
// REST API, and implements the filezen.Transfer interface.
//
// Create a client with:
//
//	client, err := httpclient.New("https://api.filezen.dev", httpclient.WithApiKey(key))
//	if err != nil {
//	   panic(err)
//	}
//
// Then use the client to manage files:
//
//	// List the first page of files
//	files, err := client.ListFiles(ctx, schema.ListFilesRequest{})
package httpclient
