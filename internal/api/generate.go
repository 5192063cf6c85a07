// Package api holds the OpenAPI document of the satstitch server and the
// types and chi router generated from it.
package api

//go:generate go tool oapi-codegen -generate types,chi-server -package api -o api.gen.go openapi.yaml
