// Package session carries the authenticated principal across requests as
// a signed token in an HTTP cookie. The token holds only the user id;
// the dispatcher resolves it to a full account record on every request,
// so stale roles or deleted accounts never survive in a cookie.
package session
