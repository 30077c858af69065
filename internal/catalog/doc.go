// Package catalog holds the implementations of domain.Catalog: an in-memory
// catalog that records calls, a REST client for the remote catalog service and
// an offline catalog that writes JSON documents to a blob store.
package catalog
