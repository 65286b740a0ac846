// Package clock lets OTP expiry, rate windows and token lifetimes read the
// current time through Clocker, so tests can pin it with a fixed clock.
package clock
