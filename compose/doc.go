// Package compose reads, patches and writes compose-style service manifests
// (Docker ComposeX files). A manifest must hold a top-level "services"
// mapping; Load and Decode reject documents without one before anything is
// changed.
//
// Apply sets the image of one service, creating the service with the
// use_discovery label when it does not exist yet.
package compose
