/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest defines the handler contract shared by all controller REST
// operations and the router that mounts them.
package rest

import "net/http"

// Handler is one controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// NewHTTPHandler returns a Handler for the given route.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) Handler {
	return &httpHandler{path: path, method: method, handle: handle}
}

type httpHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

func (h *httpHandler) Path() string {
	return h.path
}

func (h *httpHandler) Method() string {
	return h.method
}

func (h *httpHandler) Handle() http.HandlerFunc {
	return h.handle
}
