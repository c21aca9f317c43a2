package httphandler

import (
	"errors"

	// Packages
	backend "github.com/FileZen/filezen/pkg/backend"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	jsonschema "github.com/mutablelogic/go-server/pkg/jsonschema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Router is the interface required to register HTTP handlers, and is
// satisfied by a go-server httprouter.Router
type Router interface {
	RegisterPath(path string, params *jsonschema.Schema, pathitem httprequest.PathItem) error
}

type api struct {
	opt
	backend backend.Backend
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const tagFiles = "Files"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers the storage API handlers, backed by b, on the
// provided router. Paths are relative to the router prefix.
func RegisterHandlers(b backend.Backend, router Router, opts ...Opt) error {
	a := &api{backend: b}
	if o, err := applyOpts(opts...); err != nil {
		return err
	} else {
		a.opt = o
	}

	var result error
	register := func(path string, item httprequest.PathItem) {
		result = errors.Join(result, router.RegisterPath(path, nil, item))
	}
	register(a.uploadHandler())
	register(a.chunkInitializeHandler())
	register(a.chunkPartHandler())
	register(a.chunkCompleteHandler())
	register(a.deleteByUrlHandler())
	register(a.fileListHandler())
	register(a.fileHandler())
	register(a.fileContentHandler())
	return result
}
