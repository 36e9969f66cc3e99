// Package labels holds the label names stowage stamps on every image and
// container it manages, so other resources on the same daemon are never
// touched.
package labels

const domain = "dev.stowage"

const (
	Managed    = domain + ".managed"
	AppName    = domain + ".app-name"
	RunOptsSha = domain + ".run-opts-sha"
)
