// Package updater points one service of a compose manifest at a resolved
// container image. Run loads the manifest, resolves the image from an
// explicit URL, a repository and tag, the latest image of a repository, or a
// parameters file, patches the service and writes the manifest back.
//
// The manifest is only written once every step succeeded.
package updater
