// Package models contains the GORM persistence models of the fiscal core.
// Domain aggregates stay free of ORM tags; each model maps one table and
// converts to and from its aggregate with ToDomain / FromDomain.
//
//   - base.go: columns shared by tenant-scoped aggregates
//   - numbering.go: numbering series
//   - invoicing.go: fiscal documents and their lines
//   - pos.go: cash sessions, session payments and payment methods
//   - audit.go: the append-only event trail
package models
