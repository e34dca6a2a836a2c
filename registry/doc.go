// Package registry looks up ECR repositories and the images pushed to them.
// A Client is built from an explicit Config rather than an ambient default
// session; ConfigFromEnv fills a Config from COMPOSEX_REGISTRY_* variables.
//
// RepositoryURI returns the URI of a repository by exact name and fails with
// ErrRepositoryNotFound when no repository matches. ListImages returns every
// image of a repository in registry order. Transport and authentication
// failures are wrapped in *Error and never retried here.
package registry
