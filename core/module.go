package core

import (
	"fmt"
	"plugin"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// InitSymbol is the symbol an external module must export:
//
//	func Init(p *core.Plugin, id core.FormatID)
const InitSymbol = "Init"

// goModule is a module opened with the plugin package.  Go cannot unload a
// plugin, so Close only marks the handle as released.
type goModule struct {
	path   string
	closed bool
}

func (m *goModule) Name() string { return m.path }

func (m *goModule) Close() error {
	if m.closed {
		return fmt.Errorf("module %s already closed", m.path)
	}
	m.closed = true
	return nil
}

// OpenModule loads the Go plugin at path and resolves its Init symbol.
func OpenModule(path string) (Module, InitFunc, error) {
	const op = "module.open"
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	sym, err := p.Lookup(InitSymbol)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	var init InitFunc
	switch f := sym.(type) {
	case func(*Plugin, FormatID):
		init = f
	case *InitFunc:
		init = *f
	case *func(*Plugin, FormatID):
		init = *f
	default:
		return nil, nil, apperrors.Newf(apperrors.CategoryResource, op, "%s: symbol %s has type %T", path, InitSymbol, sym)
	}
	return &goModule{path: path}, init, nil
}
