// Package models contains the GORM persistence models. Domain types carry no
// ORM tags; each model converts to and from its domain type with ToDomain and
// a FromDomain constructor.
//
//   - base.go: identity, timestamp and version columns
//   - dataset.go: dataset versions and their participant records
//   - community.go: partner communities keyed by slug
package models
