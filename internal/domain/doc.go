// Package domain defines the records, capability interfaces and error
// taxonomy shared by the providers, the catalog clients and the sync engine.
package domain
