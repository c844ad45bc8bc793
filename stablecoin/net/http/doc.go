// Package http provides the fiber helpers shared by the extension bridge and
// the multi-signature API: response writers, error rendering, pagination,
// request logging and tracing middleware.
package http
