// Package otp generates short numeric one-time codes.
//
// Codes are drawn uniformly from [0, 10^n) with crypto/rand and zero padded,
// so "0042" is as likely as "9317".
package otp
