// Package params loads the optional parameters file that names the service to
// update, its repository and, optionally, the image tag. Tags that look like
// digests ("sha" anywhere in the value) are resolved as "<uri>@<digest>",
// other tags as "<uri>:<tag>", and a missing tag selects the latest pushed
// image.
//
// String values may reference environment variables as ${NAME}. Unknown
// variables are left untouched.
package params
