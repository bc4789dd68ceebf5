// Package middleware provides HTTP middleware for fleetguard.
//
// IdentityAuthenticator admits requests from the trusted dispatch layer and
// stores the asserted caller in the request context:
//
//	auth := middleware.NewIdentityAuthenticator(cfg.IsTrustedProxy)
//	router.Use(auth.Middleware)
//
// Every response carries an X-Request-ID header, generated when the
// request had none. Requests from untrusted peers, and requests without an
// actor on routes that need one, are answered with 401.
package middleware
