package transform

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rteval/parserd"

	"github.com/wamuir/go-xslt"
)

// Engine applies the report stylesheet to submission payloads.
//
// Engine implements parserd.Transformer and is safe for concurrent use
// by any number of workers: each call borrows one of the compiled
// stylesheet clones created at construction.
type Engine struct {
	sheets chan *xslt.Stylesheet
}

// NewEngine reads the stylesheet at xslPath and compiles the given
// number of independent clones, one per worker, so transforms can run
// concurrently.
//
// A stylesheet that fails to parse is an initialisation error; the
// daemon must not start without a working transform.
func NewEngine(xslPath string, clones int) (*Engine, error) {
	if clones < 1 {
		clones = 1
	}
	raw, err := os.ReadFile(xslPath)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	e := &Engine{
		sheets: make(chan *xslt.Stylesheet, clones),
	}
	for i := 0; i < clones; i++ {
		ss, err := xslt.NewStylesheet(raw)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("parse stylesheet %s: %w", xslPath, err)
		}
		e.sheets <- ss
	}
	return e, nil
}

// Transform reads the payload and renders it through the stylesheet.
//
// Unparsable payloads and stylesheet evaluation failures wrap
// parserd.ErrMalformedPayload; unreadable payload files are transient.
func (e *Engine) Transform(ctx context.Context, payloadPath string) (*parserd.Report, error) {
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	ss := <-e.sheets
	document, err := ss.Transform(payload)
	e.sheets <- ss
	if err != nil {
		if errors.Is(err, xslt.ErrXSLTFailure) {
			return nil, fmt.Errorf("%w: %v", parserd.ErrMalformedPayload, err)
		}
		return nil, fmt.Errorf("transform payload: %w", err)
	}
	rows, err := ExtractRows(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", parserd.ErrMalformedPayload, err)
	}
	return &parserd.Report{
		Document: document,
		Rows:     rows,
	}, nil
}

// Close releases the compiled stylesheet clones. The engine must not be
// used after Close.
func (e *Engine) Close() {
	for {
		select {
		case ss := <-e.sheets:
			ss.Close()
		default:
			return
		}
	}
}
