// Package api exposes the CE engine over HTTP. Routes mounts the public
// catalogue and certificate verification, the participant flow from
// registration through quiz and certificate, provider event management and
// the admin review and revocation endpoints. Handlers decode and validate
// requests, call the services and translate their errors with
// HandleAPIError.
package api
