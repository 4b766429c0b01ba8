// Package handlers provides small sequencing combinators over the
// per-connection command loop: a resumable operation ("handler") that
// completes with success or an error, plus chain/loop/middleware/error-map
// combinators to compose handlers without re-deriving control flow at every
// call site.
//
// The source this is distilled from models each of these as a trait-object
// future that gets polled; here a handler is just a plain function invoked
// directly from the connection's goroutine, so chaining is ordinary Go
// control flow wrapped in a few named helpers for readability at call sites
// (conn.go).
package handlers

import protoerr "github.com/alxayo/go-rtmp/internal/errors"

// Handler is a resumable operation over a session context that completes
// with success (nil) or an error. It is a closure over whatever state it
// needs — handlers in this package never need to know the concrete type.
type Handler func() error

// Chain runs a, and on success runs b. Either's error is propagated as-is.
func Chain(a, b Handler) Handler {
	return func() error {
		if err := a(); err != nil {
			return err
		}
		return b()
	}
}

// ChainAll is Chain generalized to N handlers, run in order, short-circuiting
// on the first error.
func ChainAll(hs ...Handler) Handler {
	return func() error {
		for _, h := range hs {
			if err := h(); err != nil {
				return err
			}
		}
		return nil
	}
}

// WhileOk runs setup once, then repeatedly runs step until it returns an
// error. A step returning protoerr.ErrStreamGotExhausted is treated as a
// clean, intentional loop exit (the success sentinel for "consumed input to
// completion") and WhileOk returns nil; any other error is returned as-is.
func WhileOk(setup Handler, step Handler) Handler {
	return func() error {
		if setup != nil {
			if err := setup(); err != nil {
				return err
			}
		}
		for {
			if err := step(); err != nil {
				if protoerr.IsStreamGotExhausted(err) {
					return nil
				}
				return err
			}
		}
	}
}

// Middleware observes the entry and exit of a wrapped handler.
type Middleware func(inner Handler) Handler

// Wrap applies middleware around inner, returning the composed handler.
// Equivalent to middleware(inner) but reads better at call sites that stack
// several middlewares:
//
//	h := Wrap(logging, readOneMessage) // logging is a Middleware
func Wrap(mw Middleware, inner Handler) Handler {
	return mw(inner)
}

// MapErr runs inner; on error, invokes onErr with the error and returns
// onErr's result (which may itself be nil to swallow the error, or a
// different error to re-map it — e.g. turning a decode failure into a typed
// protocol error before it reaches the accept loop).
func MapErr(inner Handler, onErr func(error) error) Handler {
	return func() error {
		err := inner()
		if err == nil {
			return nil
		}
		return onErr(err)
	}
}
