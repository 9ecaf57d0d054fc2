// Package http provides the document and health handlers.
//
// Every request path that no operational route claims is a document
// request: "/" renders the default document and any other path renders the
// document named by its final segment. Only GET renders. Failures carry a
// status code and no body.
package http
