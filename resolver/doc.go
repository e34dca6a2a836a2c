// Package resolver turns partial image inputs into exactly one fully-qualified
// container image reference. An explicit image URL wins and is returned as is.
// A repository with a tag becomes "<uri>:<tag>". A repository alone is
// resolved to the most recently pushed image and becomes "<uri>@<digest>".
//
// The latest-image scan keeps the behaviour of the deployment scripts it
// replaces: the first image whose push time is strictly later than the first
// image's wins, otherwise the last image in registry order is used. See
// SelectLatest.
package resolver
