// Package httpapi exposes the authentication engine over HTTP. Routes
// are mounted under /auth and answer JSON; errors map onto a fixed
// status taxonomy in statusFor.
package httpapi
